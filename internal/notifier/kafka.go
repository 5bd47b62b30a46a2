package notifier

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"monitor-precos/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel publica eventos de alerta num tópico do Kafka.
// O destinatário é o nome do tópico.
type KafkaChannel struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaChannel cria o canal. Sem brokers o canal fica desconfigurado.
func NewKafkaChannel(brokers []string) *KafkaChannel {
	c := &KafkaChannel{now: time.Now}
	if len(brokers) > 0 {
		c.writer = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}
	return c
}

func (c *KafkaChannel) Name() models.Channel { return models.ChannelKafka }

func (c *KafkaChannel) IsConfigured() bool { return c.writer != nil }

// AlertEvent é o valor publicado no tópico
type AlertEvent struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	Product   *WebhookProduct `json:"product,omitempty"`
}

func (c *KafkaChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !c.IsConfigured() {
		return failure(c.Name(), recipient, notConfigured)
	}

	event := AlertEvent{
		Event:     "price_alert",
		Timestamp: c.now().UTC(),
		Subject:   subject,
		Message:   message,
	}
	var key []byte
	if product != nil {
		key = []byte(strconv.FormatInt(product.ID, 10))
		event.Product = &WebhookProduct{
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

	value, err := json.Marshal(event)
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	err = c.writer.WriteMessages(ctx, kafka.Message{
		Topic: recipient,
		Key:   key,
		Value: value,
		Time:  event.Timestamp,
	})
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}
	return success(c.Name(), recipient)
}

// Close encerra o writer do Kafka
func (c *KafkaChannel) Close(_ context.Context) error {
	if c.writer == nil {
		return nil
	}
	return c.writer.Close()
}
