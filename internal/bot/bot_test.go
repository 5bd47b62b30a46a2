package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/e"
	"monitor-precos/pkg/logger"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.sent = append(f.sent, m.Text)
	case tgbotapi.EditMessageTextConfig:
		f.sent = append(f.sent, m.Text)
	default:
		return tgbotapi.Message{}, fmt.Errorf("unexpected %T", c)
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeService struct {
	mu       sync.Mutex
	products map[int64]models.TrackedProduct
	created  []tracker.CreateRequest
	fire     bool
}

func newFakeService() *fakeService {
	return &fakeService{products: map[int64]models.TrackedProduct{
		1: {ID: 1, Platform: models.PlatformAmazon, ProductID: "B08N5WRWNW", ProductURL: "https://www.amazon.com/dp/B08N5WRWNW",
			TargetPrice: decimal.RequireFromString("80"), Currency: "USD"},
	}}
}

func (f *fakeService) Create(_ context.Context, req tracker.CreateRequest) (*models.TrackedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !strings.Contains(req.RawURLOrID, "amazon") {
		return nil, fmt.Errorf("%w: %w %q", e.ErrValidation, e.ErrUnknownPlatform, "")
	}
	f.created = append(f.created, req)
	p := models.TrackedProduct{ID: 2, Platform: models.PlatformAmazon, ProductID: "B000000001",
		ProductURL: req.RawURLOrID, TargetPrice: req.TargetPrice, Currency: "USD", NotifyEmail: req.NotifyEmail}
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeService) Get(_ context.Context, id int64) (*models.TrackedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", e.ErrProductNotFound, id)
	}
	return &p, nil
}

func (f *fakeService) List(_ context.Context) ([]models.TrackedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TrackedProduct, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

func (f *fakeService) CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return models.CheckOutcome{}, err
	}
	out := models.CheckOutcome{
		ProductID: id,
		Result: models.PriceResult{
			Outcome:  models.OutcomeOK,
			Price:    decimal.NewNullDecimal(decimal.RequireFromString("79.99")),
			Currency: "USD",
		},
		Decision: models.DecisionNoAction,
	}
	if f.fire {
		out.Decision = models.DecisionFire
		out.Fired = true
	}
	return out, nil
}

func (f *fakeService) UpdateTarget(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.TargetPrice = target
	if rearm {
		p.AlertSent = false
	}
	f.mu.Lock()
	f.products[id] = *p
	f.mu.Unlock()
	return p, nil
}

func (f *fakeService) Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.UpdateTarget(ctx, id, p.TargetPrice, true)
}

func message(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
}

func TestHandleCommands(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"help", "/help", "Comandos disponíveis"},
		{"help with bot name", "/start@precos_bot", "Comandos disponíveis"},
		{"unknown", "/foo", "Comando não reconhecido"},
		{"add missing args", "/add https://www.amazon.com/dp/B000000001", "Formato incorreto"},
		{"add bad price", "/add https://www.amazon.com/dp/B000000001 abc", "Preço inválido"},
		{"add zero price", "/add https://www.amazon.com/dp/B000000001 0", "Preço inválido"},
		{"add unsupported", "/add https://example.com/x 10", "Loja não suportada"},
		{"add", "/add https://www.amazon.com/dp/B000000001 49,90 eu@exemplo.com", "Produto adicionado com sucesso"},
		{"list", "/list", "B08N5WRWNW"},
		{"remove bad id", "/remove abc", "ID inválido"},
		{"remove missing", "/remove 99", "Produto não encontrado"},
		{"check", "/check 1", "USD 79.99"},
		{"rearm", "/rearm 1", "Alerta rearmado"},
		{"target", "/target 1 70", "USD 70.00"},
		{"target usage", "/target 1", "Formato incorreto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			b := New(api, newFakeService(), 0, logger.NewNop())
			b.handle(context.Background(), message(42, tt.text))
			if got := api.last(); !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestAddRegistersChatAsTarget(t *testing.T) {
	api := newFakeAPI()
	svc := newFakeService()
	b := New(api, svc, 0, logger.NewNop())

	b.handle(context.Background(), message(42, "/add https://www.amazon.com/dp/B000000001 49,90"))

	if len(svc.created) != 1 {
		t.Fatalf("Create calls = %d", len(svc.created))
	}
	req := svc.created[0]
	if !req.TargetPrice.Equal(decimal.RequireFromString("49.90")) {
		t.Errorf("TargetPrice = %s", req.TargetPrice)
	}
	if len(req.Targets) != 1 || req.Targets[0].Channel != models.ChannelTelegram || req.Targets[0].Recipient != "42" {
		t.Errorf("Targets = %+v", req.Targets)
	}
}

func TestCheckReportsFiredAlert(t *testing.T) {
	api := newFakeAPI()
	svc := newFakeService()
	svc.fire = true
	b := New(api, svc, 0, logger.NewNop())

	b.handle(context.Background(), message(42, "/check 1"))
	if got := api.last(); !strings.Contains(got, "META ATINGIDA") {
		t.Errorf("reply = %q", got)
	}
}

func TestUnauthorizedChat(t *testing.T) {
	api := newFakeAPI()
	svc := newFakeService()
	b := New(api, svc, 7, logger.NewNop())

	b.handle(context.Background(), message(42, "/remove 1"))
	if got := api.last(); !strings.Contains(got, "não está autorizado") {
		t.Errorf("reply = %q", got)
	}
	if _, err := svc.Get(context.Background(), 1); err != nil {
		t.Error("unauthorized chat removed a product")
	}

	b.handle(context.Background(), message(42, "/help"))
	if got := api.last(); !strings.Contains(got, "Comandos disponíveis") {
		t.Errorf("public command blocked: %q", got)
	}
}

func TestRunAndStop(t *testing.T) {
	api := newFakeAPI()
	b := New(api, newFakeService(), 0, logger.NewNop())

	done := make(chan struct{})
	go func() {
		b.Run(context.Background())
		close(done)
	}()

	api.updates <- tgbotapi.Update{Message: message(42, "/help")}

	deadline := time.Now().Add(2 * time.Second)
	for api.last() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !strings.Contains(api.last(), "Comandos disponíveis") {
		t.Fatalf("reply = %q", api.last())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Run pode ainda não ter registrado o cancel
	for {
		if err := b.Stop(ctx); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}
		select {
		case <-done:
			api.mu.Lock()
			stopped := api.stopped
			api.mu.Unlock()
			if !stopped {
				t.Error("updates were not stopped")
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
