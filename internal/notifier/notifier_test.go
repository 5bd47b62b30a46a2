package notifier

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

type fakeChannel struct {
	name       models.Channel
	configured bool
	fail       bool
	panics     bool

	mu   sync.Mutex
	sent []string
}

func (f *fakeChannel) Name() models.Channel { return f.name }
func (f *fakeChannel) IsConfigured() bool   { return f.configured }

func (f *fakeChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	f.sent = append(f.sent, recipient)
	f.mu.Unlock()
	if f.fail {
		return failure(f.name, recipient, "falhou")
	}
	return success(f.name, recipient)
}

func testProduct() *models.TrackedProduct {
	return &models.TrackedProduct{
		ID:           7,
		Platform:     models.PlatformBestBuy,
		ProductID:    "6418599",
		ProductURL:   "https://www.bestbuy.com/site/6418599.p?skuId=6418599",
		Title:        "Fone",
		TargetPrice:  decimal.RequireFromString("80.00"),
		Currency:     "USD",
		CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("79.99")),
		NotifyEmail:  "ana@example.com",
	}
}

func okPrice(p string) models.PriceResult {
	return models.PriceResult{
		Price:    decimal.NewNullDecimal(decimal.RequireFromString(p)),
		Currency: "USD",
		Outcome:  models.OutcomeOK,
	}
}

func TestDispatchUsesAllRecipients(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, configured: true}
	tg := &fakeChannel{name: models.ChannelTelegram, configured: true}
	sms := &fakeChannel{name: models.ChannelSMS}

	r := NewRegistry(logger.NewNop(), email, tg, sms)
	r.SetDefault(models.ChannelTelegram, "12345")

	p := testProduct()
	p.Targets = []models.NotificationTarget{
		{Channel: models.ChannelTelegram, Recipient: "12345"},
		{Channel: models.ChannelSMS, Recipient: "+5511999999999"},
		{Channel: models.ChannelWebhook, Recipient: "https://example.com/hook"},
	}

	outcomes := r.Dispatch(context.Background(), p, okPrice("79.99"))
	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4: %+v", len(outcomes), outcomes)
	}

	byChannel := map[models.Channel]models.NotificationOutcome{}
	for _, o := range outcomes {
		byChannel[o.Channel] = o
	}
	if !byChannel[models.ChannelEmail].Success || !byChannel[models.ChannelTelegram].Success {
		t.Errorf("email/telegram should succeed: %+v", outcomes)
	}
	if o := byChannel[models.ChannelSMS]; o.Success || o.Error != notConfigured {
		t.Errorf("sms outcome = %+v, want not configured", o)
	}
	if o := byChannel[models.ChannelWebhook]; o.Success || o.Error != notConfigured {
		t.Errorf("unregistered webhook outcome = %+v, want not configured", o)
	}
	if len(tg.sent) != 1 {
		t.Errorf("telegram received %d messages, want 1 (dedupe)", len(tg.sent))
	}
	if len(sms.sent) != 0 {
		t.Error("unconfigured channel must not be called")
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	r := NewRegistry(logger.NewNop(), &fakeChannel{name: models.ChannelEmail, configured: true, panics: true})
	outcomes := r.Dispatch(context.Background(), testProduct(), okPrice("79.99"))
	if len(outcomes) != 1 || outcomes[0].Success || !strings.Contains(outcomes[0].Error, "panic") {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestFormatAlert(t *testing.T) {
	subject, body := FormatAlert(testProduct(), okPrice("1049.5"))
	if !strings.Contains(subject, "USD 1,049.50") {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Preço alvo: USD 80.00") || !strings.Contains(body, "Link: https://www.bestbuy.com") {
		t.Errorf("body = %q", body)
	}

	p := testProduct()
	p.Currency = "BRL"
	res := okPrice("1049.5")
	res.Currency = "BRL"
	subject, _ = FormatAlert(p, res)
	if !strings.Contains(subject, "BRL 1.049,50") {
		t.Errorf("BRL subject = %q", subject)
	}
}

func TestEmailChannelBuildsMultipart(t *testing.T) {
	c := NewEmailChannel(EmailConfig{Host: "smtp.example.com", User: "u", Password: "p", From: "alertas@example.com"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	c.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	out := c.Send(context.Background(), "ana@example.com", "Alerta", "Preço caiu", testProduct())
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Errorf("addr/to = %s %v", gotAddr, gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{"multipart/alternative", "text/plain", "text/html", "To: ana@example.com"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	c.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }
	if out := c.Send(context.Background(), "ana@example.com", "s", "m", nil); out.Success || out.Error == "" {
		t.Errorf("Send() with SMTP failure = %+v", out)
	}

	unconfigured := NewEmailChannel(EmailConfig{})
	if out := unconfigured.Send(context.Background(), "ana@example.com", "s", "m", nil); out.Error != notConfigured {
		t.Errorf("unconfigured Send() = %+v", out)
	}
}

type fakeSender struct {
	chatIDs []int64
	err     error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.chatIDs = append(f.chatIDs, msg.ChatID)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramChannel(t *testing.T) {
	sender := &fakeSender{}
	c := NewTelegramChannel(sender)

	if out := c.Send(context.Background(), "-100123", "s", "m", nil); !out.Success {
		t.Errorf("Send() = %+v", out)
	}
	if len(sender.chatIDs) != 1 || sender.chatIDs[0] != -100123 {
		t.Errorf("chat ids = %v", sender.chatIDs)
	}
	if out := c.Send(context.Background(), "abc", "s", "m", nil); out.Success {
		t.Error("invalid chat id should fail")
	}
	if NewTelegramChannel(nil).IsConfigured() {
		t.Error("channel without bot should not be configured")
	}
}

type fakeCreator struct {
	params *twilioApi.CreateMessageParams
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	return &twilioApi.ApiV2010Message{}, nil
}

func TestSMSChannel(t *testing.T) {
	if NewSMSChannel(SMSConfig{}).IsConfigured() {
		t.Error("channel without credentials should not be configured")
	}

	creator := &fakeCreator{}
	c := &SMSChannel{cfg: SMSConfig{FromNumber: "+15550000000"}, client: creator}
	out := c.Send(context.Background(), "+5511999999999", "Alerta", "Preço caiu", nil)
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if creator.params == nil || *creator.params.To != "+5511999999999" || *creator.params.From != "+15550000000" {
		t.Errorf("params = %+v", creator.params)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaChannel(t *testing.T) {
	if NewKafkaChannel(nil).IsConfigured() {
		t.Error("channel without brokers should not be configured")
	}

	w := &fakeWriter{}
	c := &KafkaChannel{writer: w, now: func() time.Time { return time.Unix(0, 0) }}
	out := c.Send(context.Background(), "price-alerts", "Alerta", "Preço caiu", testProduct())
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if len(w.msgs) != 1 || w.msgs[0].Topic != "price-alerts" || string(w.msgs[0].Key) != "7" {
		t.Errorf("messages = %+v", w.msgs)
	}
	if !strings.Contains(string(w.msgs[0].Value), `"product_id":"6418599"`) {
		t.Errorf("value = %s", w.msgs[0].Value)
	}

	w.err = errors.New("broker down")
	if out := c.Send(context.Background(), "price-alerts", "s", "m", nil); out.Success {
		t.Error("writer failure should be an unsuccessful outcome")
	}
}
