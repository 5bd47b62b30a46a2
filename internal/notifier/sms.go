package notifier

import (
	"context"
	"unicode/utf8"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"monitor-precos/internal/models"
)

const maxSMSLength = 1600

// SMSConfig contém as credenciais da Twilio
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSChannel envia alertas por SMS via Twilio
type SMSChannel struct {
	cfg    SMSConfig
	client messageCreator
}

// NewSMSChannel cria o canal de SMS
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	c := &SMSChannel{cfg: cfg}
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		c.client = rest.Api
	}
	return c
}

func (c *SMSChannel) Name() models.Channel { return models.ChannelSMS }

func (c *SMSChannel) IsConfigured() bool {
	return c.client != nil && c.cfg.FromNumber != ""
}

func (c *SMSChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !c.IsConfigured() {
		return failure(c.Name(), recipient, notConfigured)
	}
	if err := ctx.Err(); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	text := "🎯 " + subject + "\n" + message
	if utf8.RuneCountInString(text) > maxSMSLength {
		text = string([]rune(text)[:maxSMSLength])
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(c.cfg.FromNumber)
	params.SetBody(text)

	if _, err := c.client.CreateMessage(params); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	return success(c.Name(), recipient)
}
