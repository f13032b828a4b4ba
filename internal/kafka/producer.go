package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/IBM/sarama"
)

// EventPublisher публикует события журнала платежей
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// LedgerProducer публикует события в Kafka через синхронный продюсер Sarama.
// Ключ сообщения user_id: события одного пользователя попадают в одну партицию.
type LedgerProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewLedgerProducer оборачивает готовый SyncProducer
func NewLedgerProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *LedgerProducer {
	return &LedgerProducer{producer: producer, topic: topic, log: log}
}

// Dial создает SyncProducer по конфигурации и оборачивает его
func Dial(cfg *Config, log *logger.Logger) (*LedgerProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	log.Infow("Kafka producer initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewLedgerProducer(producer, cfg.Topic, log), nil
}

// Publish отправляет событие
func (p *LedgerProducer) Publish(ctx context.Context, event domain.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal ledger event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", event.Type, err)
	}

	p.log.Debugw("Published ledger event", "type", event.Type, "reference", event.Reference,
		"partition", partition, "offset", offset)
	return nil
}

// Close закрывает продюсер
func (p *LedgerProducer) Close() error {
	return p.producer.Close()
}

// NopPublisher используется, когда брокеры не настроены
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
