package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifica a loja onde o produto é monitorado
type Platform string

const (
	PlatformAmazon       Platform = "amazon"
	PlatformEbay         Platform = "ebay"
	PlatformWalmart      Platform = "walmart"
	PlatformBestBuy      Platform = "bestbuy"
	PlatformTarget       Platform = "target"
	PlatformMercadoLivre Platform = "mercadolivre"
)

// Channel identifica um canal de notificação
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
	ChannelWebhook  Channel = "webhook"
	ChannelKafka    Channel = "kafka"
	ChannelDiscord  Channel = "discord"
	ChannelSlack    Channel = "slack"
	ChannelPushover Channel = "pushover"
)

// NotificationTarget é um destino extra de alerta associado ao produto
type NotificationTarget struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
}

// TrackedProduct representa um produto sendo monitorado
type TrackedProduct struct {
	ID            int64
	Platform      Platform
	ProductID     string // identificador canônico da plataforma
	ProductURL    string // URL ou ID informado pelo usuário
	Title         string
	TargetPrice   decimal.Decimal
	Currency      string
	CurrentPrice  decimal.NullDecimal // nulo até a primeira busca com sucesso
	LastCheckedAt *time.Time          // nulo até a primeira verificação
	AlertSent     bool
	NotifyEmail   string
	Targets       []NotificationTarget
	// LastError e ConsecutiveErrors zeram a cada busca com sucesso
	LastError         string
	ConsecutiveErrors int
	Disabled          bool // fora dos ciclos após falhas seguidas demais
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Armed informa se o produto ainda pode disparar um alerta
func (p *TrackedProduct) Armed() bool {
	return !p.AlertSent
}

// CheckUpdate descreve a escrita atômica feita após cada verificação
type CheckUpdate struct {
	Price      *decimal.Decimal // nil mantém o preço atual
	Title      string           // vazio mantém o título atual
	CheckedAt  time.Time
	ClaimAlert bool // tenta marcar alert_sent=true se ainda estiver false
	// Error vazio indica busca com sucesso e zera o contador de falhas
	Error string
	// DisableAfter desativa o produto quando as falhas seguidas chegam a esse valor. Zero nunca desativa.
	DisableAfter int
}

// UpdateResult informa o efeito de UpdateCheckResult
type UpdateResult struct {
	// Applied é false quando já existe uma verificação mais recente gravada
	Applied bool
	// AlertClaimed é true apenas para o escritor que virou alert_sent de false para true
	AlertClaimed bool
	// Disabled é true quando esta escrita desativou o produto
	Disabled bool
}
