package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/metrics"
)

const consumerName = "inventory"

// defaultDedupeTTL задаёт срок хранения dedupe-ключей консюмера.
const defaultDedupeTTL = 30 * 24 * time.Hour

// Consumer — единственный владелец остатков и журнала движений.
// Реагирует на sale.completed (списание) и sale.cancelled (компенсация).
// Обработка идемпотентна: доставка at-least-once, dedupe-ключ
// (тип события + продажа + книга) проверяется до мутации и
// фиксируется только после её успеха.
type Consumer struct {
	inventory domain.InventoryRepository
	processed domain.ProcessedEventRepository
	logger    *log.Entry
	metrics   *metrics.PipelineMetrics
	dedupeTTL time.Duration
}

// NewConsumer создаёт консюмер инвентаря.
func NewConsumer(
	inventory domain.InventoryRepository,
	processed domain.ProcessedEventRepository,
	logger *log.Entry,
) *Consumer {
	if logger == nil {
		logger = log.WithField("component", "inventory-consumer")
	}
	return &Consumer{
		inventory: inventory,
		processed: processed,
		logger:    logger,
		metrics:   metrics.NewPipelineMetrics(),
		dedupeTTL: defaultDedupeTTL,
	}
}

// NewConsumerWithoutMetrics создаёт консюмер без метрик (для тестов).
func NewConsumerWithoutMetrics(
	inventory domain.InventoryRepository,
	processed domain.ProcessedEventRepository,
	logger *log.Entry,
) *Consumer {
	c := NewConsumer(inventory, processed, logger)
	c.metrics = nil
	return c
}

// HandleSaleCompleted списывает остатки по каждой позиции завершённой
// продажи и добавляет по одному SALE-движению со снимком before/after.
// Позиции обрабатываются по одной; dedupe-ключ позиции фиксируется
// только после успешного списания, поэтому временный сбой оставляет
// позицию непомеченной и повторная доставка доводит её до конца, а уже
// применённые позиции отбрасываются проверкой ключа.
func (c *Consumer) HandleSaleCompleted(sale domain.Sale) error {
	start := time.Now()
	defer c.observe(start)

	for _, item := range groupItems(sale.Items) {
		key := domain.DedupeKey(consumerName, string(kafka.EventTypeSaleCompleted), sale.ID, item.BookID)
		applied, err := c.processed.Seen(key)
		if err != nil {
			return fmt.Errorf("check dedupe %s: %w", key, err)
		}
		if applied {
			c.duplicateSkipped(sale.ID, item.BookID)
			continue
		}

		movement, err := c.inventory.ApplyDelta(item.BookID, -item.Qty, domain.MovementTypeSale, sale.ID, "sale settlement")
		if err != nil {
			if errors.Is(err, domain.ErrInventoryNotFound) {
				// Отсутствие записи остатка не блокирует событие: позиция
				// пропускается, остальные обрабатываются дальше. Исход
				// финальный, ключ фиксируется как для успешной позиции.
				c.consistencyWarning(sale.ID, item.BookID, "inventory record missing, item skipped")
				if err := c.markProcessed(key); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("apply sale delta for %s: %w", item.BookID, err)
		}

		if movement.QuantityDelta != -item.Qty {
			// Дефицит на момент расчёта: валидация остаётся на создании
			// продажи, списание усекается на нуле, расхождение наблюдаемо.
			c.consistencyWarning(sale.ID, item.BookID, fmt.Sprintf(
				"stock shortfall at settlement: requested %d, applied %d", -item.Qty, movement.QuantityDelta))
		}

		if err := c.markProcessed(key); err != nil {
			return err
		}

		c.logger.WithFields(log.Fields{
			"sale_id":      sale.ID,
			"book_id":      item.BookID,
			"stock_before": movement.StockBefore,
			"stock_after":  movement.StockAfter,
		}).Debug("stock decremented")
	}

	if c.metrics != nil {
		c.metrics.RecordEventConsumed(consumerName, string(kafka.EventTypeSaleCompleted))
	}
	return nil
}

// HandleSaleCancelled компенсирует ранее применённое списание.
// Возврат выполняется только если списание по паре (продажа, книга)
// действительно происходило; отмена pending-продажи остатки не трогает.
func (c *Consumer) HandleSaleCancelled(sale domain.Sale) error {
	start := time.Now()
	defer c.observe(start)

	for _, item := range groupItems(sale.Items) {
		completedKey := domain.DedupeKey(consumerName, string(kafka.EventTypeSaleCompleted), sale.ID, item.BookID)
		applied, err := c.processed.Seen(completedKey)
		if err != nil {
			return fmt.Errorf("check completion for %s: %w", item.BookID, err)
		}
		if !applied {
			c.logger.WithFields(log.Fields{
				"sale_id": sale.ID,
				"book_id": item.BookID,
			}).Debug("no prior decrement, nothing to reverse")
			continue
		}

		key := domain.DedupeKey(consumerName, string(kafka.EventTypeSaleCancelled), sale.ID, item.BookID)
		reversed, err := c.processed.Seen(key)
		if err != nil {
			return fmt.Errorf("check dedupe %s: %w", key, err)
		}
		if reversed {
			c.duplicateSkipped(sale.ID, item.BookID)
			continue
		}

		movement, err := c.inventory.ApplyDelta(item.BookID, item.Qty, domain.MovementTypeAdjustment, sale.ID, "sale cancellation reversal")
		if err != nil {
			if errors.Is(err, domain.ErrInventoryNotFound) {
				c.consistencyWarning(sale.ID, item.BookID, "inventory record missing, reversal skipped")
				if err := c.markProcessed(key); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("apply reversal delta for %s: %w", item.BookID, err)
		}

		if err := c.markProcessed(key); err != nil {
			return err
		}

		c.logger.WithFields(log.Fields{
			"sale_id":      sale.ID,
			"book_id":      item.BookID,
			"stock_before": movement.StockBefore,
			"stock_after":  movement.StockAfter,
		}).Debug("stock reversal applied")
	}

	if c.metrics != nil {
		c.metrics.RecordEventConsumed(consumerName, string(kafka.EventTypeSaleCancelled))
	}
	return nil
}

// HandleOutboxMessage — адаптер для in-process шины.
func (c *Consumer) HandleOutboxMessage(msg domain.OutboxMessage) error {
	event, err := kafka.ParseSaleEvent(msg.Payload)
	if err != nil {
		return err
	}
	return c.dispatch(event)
}

// HandleKafkaMessage — адаптер для Kafka consumer group.
func (c *Consumer) HandleKafkaMessage(_ context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message.Value)
	if err != nil {
		return err
	}
	event, err := kafka.ParseSaleEvent(envelope.Payload)
	if err != nil {
		return err
	}
	return c.dispatch(event)
}

func (c *Consumer) dispatch(event *kafka.SaleEvent) error {
	switch event.EventType {
	case kafka.EventTypeSaleCompleted:
		return c.HandleSaleCompleted(event.Sale.ToDomain())
	case kafka.EventTypeSaleCancelled:
		return c.HandleSaleCancelled(event.Sale.ToDomain())
	default:
		// sale.created информационное, побочных эффектов у инвентаря нет.
		return nil
	}
}

// markProcessed фиксирует dedupe-ключ позиции. Параллельная доставка
// того же ключа уже отсечена сериализацией по aggregate ID, поэтому
// повторная пометка не ошибка.
func (c *Consumer) markProcessed(key string) error {
	err := c.processed.MarkProcessed(key, time.Now().UTC().Add(c.dedupeTTL))
	if err != nil && !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		return fmt.Errorf("mark processed %s: %w", key, err)
	}
	return nil
}

func (c *Consumer) duplicateSkipped(saleID, bookID string) {
	c.logger.WithFields(log.Fields{
		"sale_id": saleID,
		"book_id": bookID,
	}).Debug("duplicate delivery skipped")
	if c.metrics != nil {
		c.metrics.RecordDuplicateSkipped(consumerName)
	}
}

func (c *Consumer) consistencyWarning(saleID, bookID, msg string) {
	c.logger.WithFields(log.Fields{
		"sale_id": saleID,
		"book_id": bookID,
	}).Warn(msg)
	if c.metrics != nil {
		c.metrics.RecordConsistencyWarning()
	}
}

func (c *Consumer) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordConsumerDuration(consumerName, time.Since(start))
	}
}

// groupedItem — агрегированные количества одной книги в продаже.
type groupedItem struct {
	BookID        string
	Qty           int32
	SubtotalMinor int64
}

// groupItems сводит позиции к одной записи на книгу: гранулярность
// dedupe-ключа — пара (продажа, книга), поэтому дублирующиеся строки
// одной книги применяются как единое изменение.
func groupItems(items []domain.SaleItem) []groupedItem {
	index := make(map[string]int, len(items))
	result := make([]groupedItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.BookID]; ok {
			result[i].Qty += item.Qty
			result[i].SubtotalMinor += item.SubtotalMinor
			continue
		}
		index[item.BookID] = len(result)
		result = append(result, groupedItem{
			BookID:        item.BookID,
			Qty:           item.Qty,
			SubtotalMinor: item.SubtotalMinor,
		})
	}
	return result
}
