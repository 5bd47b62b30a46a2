package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome é o resultado de uma busca de preço
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeFetchError Outcome = "fetch_error"
)

// ErrorKind classifica uma falha de busca
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNotConfigured   ErrorKind = "not_configured"
	KindNotFound        ErrorKind = "not_found"
	KindRateLimited     ErrorKind = "rate_limited"
	KindUpstreamError   ErrorKind = "upstream_error"
	KindTimeout         ErrorKind = "timeout"
	KindUnknownPlatform ErrorKind = "unknown_platform"
)

// PriceResult é o valor produzido por um fetcher
type PriceResult struct {
	Platform    Platform
	ProductID   string
	Price       decimal.NullDecimal
	Currency    string
	Title       string
	FetchedAt   time.Time
	Outcome     Outcome
	ErrorKind   ErrorKind
	Error       string
	Placeholder bool
}

// OK informa se a busca teve sucesso e trouxe um preço
func (r PriceResult) OK() bool {
	return r.Outcome == OutcomeOK && r.Price.Valid
}

// FailedResult monta um resultado de falha
func FailedResult(platform Platform, productID string, kind ErrorKind, err error, at time.Time) PriceResult {
	res := PriceResult{
		Platform:  platform,
		ProductID: productID,
		FetchedAt: at,
		Outcome:   OutcomeFetchError,
		ErrorKind: kind,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// NotificationOutcome é o resultado do envio por um canal. Não é persistido.
type NotificationOutcome struct {
	Channel   Channel
	Recipient string
	Success   bool
	Error     string
}

// Decision é a saída da regra de alerta
type Decision string

const (
	DecisionNoAction Decision = "no_action"
	DecisionArm      Decision = "arm"
	DecisionFire     Decision = "fire"
)

// CheckOutcome é o resultado de uma verificação de um único produto
type CheckOutcome struct {
	ProductID     int64
	Result        PriceResult
	Decision      Decision
	Fired         bool
	Notifications []NotificationOutcome
	Err           error // falha ao gravar o resultado
}

// Failed informa se a verificação não produziu preço ou não foi gravada
func (o CheckOutcome) Failed() bool {
	return o.Err != nil || !o.Result.OK()
}

// CycleReport agrega os resultados de um ciclo completo
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int // produtos removidos durante o ciclo
	Fired      int
	Outcomes   []CheckOutcome
}

// Add contabiliza o resultado de um produto
func (r *CycleReport) Add(o CheckOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Failed() {
		r.Failed++
	} else {
		r.Succeeded++
	}
	if o.Fired {
		r.Fired++
	}
}

// Duration retorna o tempo total do ciclo
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
