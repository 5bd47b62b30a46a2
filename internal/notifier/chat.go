package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"monitor-precos/internal/models"
)

// Cor roxa usada no embed do Discord
const discordColor = 0x667eea

// incomingWebhook posta JSON num webhook de entrada (Discord, Slack).
// A URL vem do destinatário; a padrão é registrada com Registry.SetDefault.
type incomingWebhook struct {
	client *http.Client
	now    func() time.Time
}

func newIncomingWebhook(timeout time.Duration) incomingWebhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return incomingWebhook{client: &http.Client{Timeout: timeout}, now: time.Now}
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (w incomingWebhook) post(ctx context.Context, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// priceFields devolve preço atual, alvo e economia já formatados
func priceFields(product *models.TrackedProduct) (current, target, savings string) {
	target = FormatMoney(product.TargetPrice, product.Currency)
	current = "N/A"
	if product.CurrentPrice.Valid {
		current = FormatMoney(product.CurrentPrice.Decimal, product.Currency)
		if diff := product.TargetPrice.Sub(product.CurrentPrice.Decimal); diff.IsPositive() {
			savings = FormatMoney(diff, product.Currency)
		}
	}
	return current, target, savings
}

// DiscordChannel envia o alerta como embed para um webhook do Discord
type DiscordChannel struct {
	hook incomingWebhook
}

// NewDiscordChannel cria o canal do Discord
func NewDiscordChannel(timeout time.Duration) *DiscordChannel {
	return &DiscordChannel{hook: newIncomingWebhook(timeout)}
}

func (c *DiscordChannel) Name() models.Channel { return models.ChannelDiscord }

// IsConfigured é sempre true: a URL do webhook vem do destinatário
func (c *DiscordChannel) IsConfigured() bool { return true }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      map[string]any `json:"footer"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (c *DiscordChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !validWebhookURL(recipient) {
		return failure(c.Name(), recipient, "URL de webhook do Discord inválida")
	}

	embed := discordEmbed{
		Title:       "🎯 " + subject,
		Description: message,
		Color:       discordColor,
		Timestamp:   c.hook.now().UTC().Format(time.RFC3339),
		Footer:      map[string]any{"text": "Monitor de Preços"},
	}
	if product != nil {
		current, target, savings := priceFields(product)
		embed.URL = product.ProductURL
		embed.Fields = []discordField{
			{Name: "Produto", Value: displayTitle(product)},
			{Name: "Preço atual", Value: current, Inline: true},
			{Name: "Preço alvo", Value: target, Inline: true},
		}
		if savings != "" {
			embed.Fields = append(embed.Fields, discordField{Name: "Economia", Value: savings + " 🎉", Inline: true})
		}
	}

	if err := c.hook.post(ctx, recipient, discordPayload{Embeds: []discordEmbed{embed}}); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	return success(c.Name(), recipient)
}

// SlackChannel envia o alerta em blocos para um webhook do Slack
type SlackChannel struct {
	hook incomingWebhook
}

// NewSlackChannel cria o canal do Slack
func NewSlackChannel(timeout time.Duration) *SlackChannel {
	return &SlackChannel{hook: newIncomingWebhook(timeout)}
}

func (c *SlackChannel) Name() models.Channel { return models.ChannelSlack }

// IsConfigured é sempre true: a URL do webhook vem do destinatário
func (c *SlackChannel) IsConfigured() bool { return true }

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func (c *SlackChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !validWebhookURL(recipient) {
		return failure(c.Name(), recipient, "URL de webhook do Slack inválida")
	}

	payload := slackPayload{
		Text: subject,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "🎯 " + subject, Emoji: true}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: message}},
		},
	}
	if product != nil {
		current, target, savings := priceFields(product)
		fields := []slackText{
			{Type: "mrkdwn", Text: "*Produto:*\n" + displayTitle(product)},
			{Type: "mrkdwn", Text: "*Preço atual:*\n" + current},
			{Type: "mrkdwn", Text: "*Preço alvo:*\n" + target},
		}
		if savings != "" {
			fields = append(fields, slackText{Type: "mrkdwn", Text: "*Economia:*\n" + savings + " 🎉"})
		}
		payload.Blocks = append(payload.Blocks, slackBlock{Type: "section", Fields: fields})

		if product.ProductURL != "" {
			payload.Blocks = append(payload.Blocks, slackBlock{
				Type: "actions",
				Elements: []slackElement{{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Ver produto"},
					URL:   product.ProductURL,
					Style: "primary",
				}},
			})
		}
	}

	if err := c.hook.post(ctx, recipient, payload); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	return success(c.Name(), recipient)
}
