package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/jitter"
)

const SignatureHeader = "X-Signature-256"

// WebhookConfig configura o envio para URLs externas
type WebhookConfig struct {
	Secret      string
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// WebhookChannel envia o alerta como JSON assinado para a URL do destinatário
type WebhookChannel struct {
	cfg    WebhookConfig
	client *http.Client
	now    func() time.Time
}

// NewWebhookChannel cria o canal de webhook
func NewWebhookChannel(cfg WebhookConfig) *WebhookChannel {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (c *WebhookChannel) Name() models.Channel { return models.ChannelWebhook }

// IsConfigured é sempre true: a URL vem do destinatário
func (c *WebhookChannel) IsConfigured() bool { return true }

// WebhookPayload é o corpo enviado no POST
type WebhookPayload struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	Product   *WebhookProduct `json:"product,omitempty"`
}

type WebhookProduct struct {
	ID           int64               `json:"id"`
	Platform     models.Platform     `json:"platform"`
	ProductID    string              `json:"product_id"`
	Title        string              `json:"title,omitempty"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	TargetPrice  decimal.Decimal     `json:"target_price"`
	Currency     string              `json:"currency"`
	URL          string              `json:"url"`
}

// Sign calcula a assinatura HMAC-SHA256 do corpo
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *WebhookChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	u, err := url.Parse(recipient)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return failure(c.Name(), recipient, "URL de webhook inválida")
	}

	payload := WebhookPayload{
		Event:     "price_alert",
		Timestamp: c.now().UTC(),
		Subject:   subject,
		Message:   message,
	}
	if product != nil {
		payload.Product = &WebhookProduct{
			ID:           product.ID,
			Platform:     product.Platform,
			ProductID:    product.ProductID,
			Title:        product.Title,
			CurrentPrice: product.CurrentPrice,
			TargetPrice:  product.TargetPrice,
			Currency:     product.Currency,
			URL:          product.ProductURL,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		if attempt > 0 {
			wait := jitter.ExponentialBackoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, attempt-1, jitter.DefaultJitter)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return failure(c.Name(), recipient, fmt.Sprintf("%v (última falha: %v)", ctx.Err(), lastErr))
			}
		}

		retry, err := c.post(ctx, recipient, body)
		if err == nil {
			return success(c.Name(), recipient)
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return failure(c.Name(), recipient, lastErr.Error())
}

// post envia uma tentativa. retry indica se vale tentar de novo.
func (c *WebhookChannel) post(ctx context.Context, target string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(c.cfg.Secret, body))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	retry = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return retry, fmt.Errorf("HTTP %d", resp.StatusCode)
}
