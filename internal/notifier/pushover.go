package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"monitor-precos/internal/models"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverConfig configura o canal Pushover
type PushoverConfig struct {
	AppToken string
	Endpoint string // sobrescreve a URL da API (testes)
	Timeout  time.Duration
}

// PushoverChannel envia o alerta para o user key do destinatário
type PushoverChannel struct {
	cfg    PushoverConfig
	client *http.Client
}

// NewPushoverChannel cria o canal Pushover
func NewPushoverChannel(cfg PushoverConfig) *PushoverChannel {
	if cfg.Endpoint == "" {
		cfg.Endpoint = pushoverEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PushoverChannel{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (c *PushoverChannel) Name() models.Channel { return models.ChannelPushover }

func (c *PushoverChannel) IsConfigured() bool { return c.cfg.AppToken != "" }

type pushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

func (c *PushoverChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !c.IsConfigured() {
		return failure(c.Name(), recipient, notConfigured)
	}

	form := url.Values{
		"token":    {c.cfg.AppToken},
		"user":     {recipient},
		"title":    {subject},
		"message":  {message},
		"priority": {"0"},
	}
	if product != nil && product.ProductURL != "" {
		form.Set("url", product.ProductURL)
		form.Set("url_title", "Ver produto")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	defer resp.Body.Close()

	var body pushoverResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return failure(c.Name(), recipient, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if body.Status != 1 {
		reason := strings.Join(body.Errors, ", ")
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return failure(c.Name(), recipient, reason)
	}
	return success(c.Name(), recipient)
}
