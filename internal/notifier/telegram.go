package notifier

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"monitor-precos/internal/models"
)

// Sender é a parte do *tgbotapi.BotAPI usada para enviar mensagens
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel envia alertas para um chat do Telegram
type TelegramChannel struct {
	bot Sender
}

// NewTelegramChannel cria o canal do Telegram. bot pode ser nil quando não há token.
func NewTelegramChannel(bot Sender) *TelegramChannel {
	return &TelegramChannel{bot: bot}
}

func (c *TelegramChannel) Name() models.Channel { return models.ChannelTelegram }

func (c *TelegramChannel) IsConfigured() bool { return c.bot != nil }

func (c *TelegramChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !c.IsConfigured() {
		return failure(c.Name(), recipient, notConfigured)
	}
	if err := ctx.Err(); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return failure(c.Name(), recipient, "chat id inválido: "+recipient)
	}

	msg := tgbotapi.NewMessage(chatID, message)
	msg.DisableWebPagePreview = false
	if _, err := c.bot.Send(msg); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	return success(c.Name(), recipient)
}
