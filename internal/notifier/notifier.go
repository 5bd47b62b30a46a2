package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"monitor-precos/internal/metrics"
	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

const notConfigured = "not configured"

// Channel define a interface para um canal de notificação
type Channel interface {
	Name() models.Channel
	IsConfigured() bool
	// Send nunca retorna erro: falhas viram NotificationOutcome com Success=false
	Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome
}

// Registry mantém os canais disponíveis e os destinatários padrão
type Registry struct {
	mu       sync.RWMutex
	channels map[models.Channel]Channel
	defaults map[models.Channel]string
	log      logger.Logger
}

// NewRegistry cria um registro com os canais informados
func NewRegistry(log logger.Logger, channels ...Channel) *Registry {
	r := &Registry{
		channels: make(map[models.Channel]Channel),
		defaults: make(map[models.Channel]string),
		log:      log,
	}
	for _, c := range channels {
		r.Register(c)
	}
	return r
}

// Register adiciona ou substitui um canal
func (r *Registry) Register(c Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.Name()] = c
}

// SetDefault define um destinatário usado em todos os alertas do canal
func (r *Registry) SetDefault(ch models.Channel, recipient string) {
	if recipient == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[ch] = recipient
}

// Get retorna o canal registrado
func (r *Registry) Get(ch models.Channel) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[ch]
	return c, ok
}

// Configured lista os canais com credenciais
func (r *Registry) Configured() []models.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Channel
	for name, c := range r.channels {
		if c.IsConfigured() {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Recipients resolve os destinos de um produto: e-mail, destinos extras e padrões
func (r *Registry) Recipients(product *models.TrackedProduct) []models.NotificationTarget {
	seen := make(map[models.NotificationTarget]bool)
	var out []models.NotificationTarget
	add := func(t models.NotificationTarget) {
		if t.Recipient == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	if product.NotifyEmail != "" {
		add(models.NotificationTarget{Channel: models.ChannelEmail, Recipient: product.NotifyEmail})
	}
	for _, t := range product.Targets {
		add(t)
	}

	r.mu.RLock()
	chans := make([]models.Channel, 0, len(r.defaults))
	for ch := range r.defaults {
		chans = append(chans, ch)
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })
	for _, ch := range chans {
		add(models.NotificationTarget{Channel: ch, Recipient: r.defaults[ch]})
	}
	r.mu.RUnlock()

	return out
}

// Dispatch envia o alerta por todos os destinos do produto
func (r *Registry) Dispatch(ctx context.Context, product *models.TrackedProduct, result models.PriceResult) []models.NotificationOutcome {
	subject, message := FormatAlert(product, result)

	var outcomes []models.NotificationOutcome
	for _, target := range r.Recipients(product) {
		out := r.send(ctx, target, subject, message, product)
		metrics.RecordNotification(string(out.Channel), out.Success)
		if out.Success {
			r.log.Infof("Notificação enviada para produto %d via %s", product.ID, out.Channel)
		} else {
			r.log.Warnf("Falha ao notificar produto %d via %s: %s", product.ID, out.Channel, out.Error)
		}
		outcomes = append(outcomes, out)
	}

	if len(outcomes) == 0 {
		r.log.Warnf("Produto %d atingiu o preço alvo mas não tem destinos de notificação", product.ID)
	}
	return outcomes
}

func (r *Registry) send(ctx context.Context, target models.NotificationTarget, subject, message string, product *models.TrackedProduct) (out models.NotificationOutcome) {
	c, ok := r.Get(target.Channel)
	if !ok || !c.IsConfigured() {
		return failure(target.Channel, target.Recipient, notConfigured)
	}

	defer func() {
		if p := recover(); p != nil {
			out = failure(target.Channel, target.Recipient, fmt.Sprintf("panic: %v", p))
		}
	}()
	return c.Send(ctx, target.Recipient, subject, message, product)
}

func success(ch models.Channel, recipient string) models.NotificationOutcome {
	return models.NotificationOutcome{Channel: ch, Recipient: recipient, Success: true}
}

func failure(ch models.Channel, recipient, reason string) models.NotificationOutcome {
	return models.NotificationOutcome{Channel: ch, Recipient: recipient, Error: reason}
}
