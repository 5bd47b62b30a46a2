package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"monitor-precos/internal/alert"
	"monitor-precos/internal/metrics"
	"monitor-precos/internal/models"
	"monitor-precos/pkg/e"
	"monitor-precos/pkg/logger"
)

// Tempo máximo para gravar o resultado e notificar depois que a busca terminou
const commitTimeout = 30 * time.Second

// Gateway é o acesso ao banco usado pelo monitor
type Gateway interface {
	ListActiveProducts(ctx context.Context) ([]models.TrackedProduct, error)
	GetProduct(ctx context.Context, id int64) (*models.TrackedProduct, error)
	UpdateCheckResult(ctx context.Context, id int64, u models.CheckUpdate) (models.UpdateResult, error)
}

// Fetchers resolve a plataforma e busca o preço. Nunca retorna erro.
type Fetchers interface {
	Fetch(ctx context.Context, platform models.Platform, productID string) models.PriceResult
}

// Notifier envia o alerta por todos os canais do produto
type Notifier interface {
	Dispatch(ctx context.Context, product *models.TrackedProduct, result models.PriceResult) []models.NotificationOutcome
}

// Config controla a concorrência e o tempo de cada busca
type Config struct {
	MaxConcurrent int
	FetchTimeout  time.Duration
	// MaxConsecutiveErrors desativa o produto após essa quantidade de falhas
	// seguidas. Zero usa o padrão; negativo nunca desativa.
	MaxConsecutiveErrors int
}

const defaultMaxConsecutiveErrors = 10

// Monitor executa os ciclos de verificação de preços
type Monitor struct {
	db       Gateway
	fetchers Fetchers
	notifier Notifier
	cfg      Config
	log      logger.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// New cria uma nova instância do monitor
func New(db Gateway, fetchers Fetchers, notifier Notifier, cfg Config, log logger.Logger) *Monitor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	switch {
	case cfg.MaxConsecutiveErrors == 0:
		cfg.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	case cfg.MaxConsecutiveErrors < 0:
		cfg.MaxConsecutiveErrors = 0
	}
	return &Monitor{
		db:       db,
		fetchers: fetchers,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// RunCycle verifica todos os produtos uma vez. Falhas de um produto não
// interrompem o ciclo; só a falha ao listar os produtos é retornada.
func (m *Monitor) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	report := &models.CycleReport{ID: uuid.NewString(), StartedAt: m.now()}
	log := m.log.With("cycle_id", report.ID)

	products, err := m.db.ListActiveProducts(ctx)
	if err != nil {
		if !errors.Is(err, e.ErrPersistence) {
			err = fmt.Errorf("%w: %w", e.ErrPersistence, err)
		}
		log.Errorf(err, "Erro ao buscar produtos")
		return nil, e.Wrap("erro ao buscar produtos", err)
	}
	report.Total = len(products)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, m.cfg.MaxConcurrent)
	)

loop:
	for _, p := range products {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}

		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			out, skipped := m.check(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if skipped {
				report.Skipped++
				return
			}
			report.Add(out)
		}(p.ID)
	}
	wg.Wait()

	report.FinishedAt = m.now()
	metrics.RecordCycle(report.Duration())

	if ctx.Err() != nil {
		log.Warnf("Ciclo interrompido: %d de %d produtos verificados", report.Succeeded+report.Failed, report.Total)
	}
	log.Infof("Ciclo concluído em %v: %d produtos, %d ok, %d com falha, %d ignorados, %d alertas",
		report.Duration().Round(time.Millisecond), report.Total, report.Succeeded, report.Failed, report.Skipped, report.Fired)
	return report, nil
}

// CheckNow verifica um produto imediatamente, pelo mesmo caminho do ciclo
func (m *Monitor) CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error) {
	out, skipped := m.check(ctx, id)
	if skipped {
		return out, fmt.Errorf("%w: id %d", e.ErrProductNotFound, id)
	}
	return out, out.Err
}

// check processa um produto. skipped indica que o produto não existe mais.
func (m *Monitor) check(ctx context.Context, id int64) (out models.CheckOutcome, skipped bool) {
	out.ProductID = id

	unlock := m.locks.Lock(id)
	defer unlock()

	product, err := m.db.GetProduct(ctx, id)
	if errors.Is(err, e.ErrProductNotFound) {
		m.log.Debugf("Produto %d removido durante o ciclo", id)
		return out, true
	}
	if err != nil {
		m.log.Errorf(err, "Erro ao carregar produto %d", id)
		out.Err = err
		return out, false
	}

	started := m.now()
	result := m.fetch(ctx, product)
	checkedAt := m.now()
	metrics.RecordCheck(string(product.Platform), string(result.Outcome), string(result.ErrorKind), checkedAt.Sub(started))

	out.Result = result
	out.Decision = alert.Decide(product.AlertSent, product.TargetPrice, result)

	if !result.OK() && ctx.Err() != nil {
		// Ciclo cancelado no meio da busca: não há resultado para gravar
		return out, false
	}
	if !result.OK() {
		m.log.Warnf("Erro ao buscar preço do produto %d (%s/%s): %s %s",
			id, product.Platform, product.ProductID, result.ErrorKind, result.Error)
	}

	update := models.CheckUpdate{
		CheckedAt:    checkedAt,
		ClaimAlert:   out.Decision == models.DecisionFire,
		DisableAfter: m.cfg.MaxConsecutiveErrors,
	}
	if !result.OK() {
		update.Error = failureReason(result)
	} else {
		price := result.Price.Decimal
		update.Price = &price
		if product.Title == "" {
			update.Title = result.Title
		}
	}

	// A busca já terminou: o resultado é gravado mesmo se o ciclo for cancelado
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	res, err := m.db.UpdateCheckResult(commitCtx, id, update)
	if errors.Is(err, e.ErrProductNotFound) {
		return out, true
	}
	if err != nil {
		m.log.Errorf(err, "Erro ao gravar verificação do produto %d", id)
		out.Err = err
		return out, false
	}
	if !res.Applied {
		m.log.Debugf("Produto %d já tem verificação mais recente; resultado descartado", id)
	}
	if res.Disabled {
		m.log.Warnf("Produto %d desativado após %d falhas seguidas", id, m.cfg.MaxConsecutiveErrors)
	}

	if !res.AlertClaimed {
		return out, false
	}

	product.AlertSent = true
	product.LastCheckedAt = &checkedAt
	product.CurrentPrice = result.Price
	if product.Title == "" {
		product.Title = result.Title
	}

	m.log.Infof("Preço alvo atingido para produto %d: %s <= %s", id, result.Price.Decimal, product.TargetPrice)
	metrics.RecordAlert(string(product.Platform))
	out.Fired = true
	out.Notifications = m.notifier.Dispatch(commitCtx, product, result)
	return out, false
}

// failureReason resume a falha gravada em last_error
func failureReason(r models.PriceResult) string {
	if r.Error != "" {
		return r.Error
	}
	if r.ErrorKind != "" {
		return string(r.ErrorKind)
	}
	return "unknown error"
}

// fetch busca o preço com limite de tempo. Se o fetcher não respeitar o
// contexto, o resultado é descartado e a verificação vira timeout.
func (m *Monitor) fetch(ctx context.Context, p *models.TrackedProduct) models.PriceResult {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	done := make(chan models.PriceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.FailedResult(p.Platform, p.ProductID, models.KindUpstreamError,
					fmt.Errorf("%w: panic: %v", e.ErrUpstream, r), m.now())
			}
		}()
		done <- m.fetchers.Fetch(fctx, p.Platform, p.ProductID)
	}()

	select {
	case res := <-done:
		return res
	case <-fctx.Done():
		kind := models.KindTimeout
		err := fmt.Errorf("%w: %v", e.ErrTimeout, fctx.Err())
		if errors.Is(fctx.Err(), context.Canceled) {
			kind = models.KindUpstreamError
			err = fmt.Errorf("%w: %v", e.ErrUpstream, fctx.Err())
		}
		return models.FailedResult(p.Platform, p.ProductID, kind, err, m.now())
	}
}
