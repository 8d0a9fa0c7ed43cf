package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/config"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/membus"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/analytics"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/inventory"
)

// Messaging объединяет активный транспорт событий: publisher для outbox
// worker-а, DLQ publisher и Kafka-консюмеры (пустые при in-process шине).
type Messaging struct {
	Publisher    domain.OutboxPublisher
	DLQPublisher domain.OutboxPublisher

	producer  *kafka.Producer
	consumers []*kafka.Consumer
}

// initMessaging выбирает транспорт: при заданных брокерах — Kafka
// с отдельными consumer group для инвентаря и аналитики, иначе —
// синхронная in-process шина с теми же обработчиками.
func initMessaging(
	cfg *config.Config,
	inventoryConsumer *inventory.Consumer,
	analyticsAggregator *analytics.Aggregator,
	logger *log.Entry,
) (*Messaging, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		bus := membus.NewBus(nil)
		bus.Subscribe(inventoryConsumer.HandleOutboxMessage)
		bus.Subscribe(analyticsAggregator.HandleOutboxMessage)
		logger.Info("in-process event bus initialized")
		return &Messaging{Publisher: bus}, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")

	topics := []string{kafka.TopicSaleEvents}

	inventoryGroup, err := kafka.NewConsumerWithDLQ(
		brokers, cfg.KafkaGroupID+"-inventory", topics,
		inventoryConsumer.HandleKafkaMessage, producer, 3,
	)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("create inventory consumer group: %w", err)
	}

	analyticsGroup, err := kafka.NewConsumerWithDLQ(
		brokers, cfg.KafkaGroupID+"-analytics", topics,
		analyticsAggregator.HandleKafkaMessage, producer, 3,
	)
	if err != nil {
		_ = inventoryGroup.Stop()
		_ = producer.Close()
		return nil, fmt.Errorf("create analytics consumer group: %w", err)
	}

	return &Messaging{
		Publisher:    kafka.NewOutboxPublisher(producer, kafka.TopicSaleEvents),
		DLQPublisher: kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
		producer:     producer,
		consumers:    []*kafka.Consumer{inventoryGroup, analyticsGroup},
	}, nil
}

// Start запускает Kafka-консюмеры; для in-process шины ничего не делает.
func (m *Messaging) Start(ctx context.Context) error {
	for _, consumer := range m.consumers {
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}
	return nil
}

// Close останавливает консюмеры и закрывает producer.
func (m *Messaging) Close(logger *log.Entry) {
	for _, consumer := range m.consumers {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if m.producer != nil {
		if err := m.producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}
}
