package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/metrics"
)

const consumerName = "analytics"

// defaultDedupeTTL задаёт срок хранения dedupe-ключей агрегатора.
const defaultDedupeTTL = 30 * 24 * time.Hour

// Окна накопительных счётчиков продаж.
const (
	windowShort  = 7 * 24 * time.Hour
	windowMedium = 30 * 24 * time.Hour
	windowLong   = 90 * 24 * time.Hour
)

// Aggregator поддерживает аналитику продаж по книгам: накопительные
// счётчики, оконные суммы и производные показатели оборачиваемости.
// Реагирует только на sale.completed; отмена продажи аналитику не
// откатывает — компенсируется только инвентарь.
type Aggregator struct {
	analytics domain.AnalyticsRepository
	inventory domain.InventoryRepository
	processed domain.ProcessedEventRepository
	logger    *log.Entry
	metrics   *metrics.PipelineMetrics
	dedupeTTL time.Duration

	// now выносится в поле, чтобы тесты могли управлять временем.
	now func() time.Time
}

// NewAggregator создаёт агрегатор аналитики.
func NewAggregator(
	analytics domain.AnalyticsRepository,
	inventory domain.InventoryRepository,
	processed domain.ProcessedEventRepository,
	logger *log.Entry,
) *Aggregator {
	if logger == nil {
		logger = log.WithField("component", "analytics-aggregator")
	}
	return &Aggregator{
		analytics: analytics,
		inventory: inventory,
		processed: processed,
		logger:    logger,
		metrics:   metrics.NewPipelineMetrics(),
		dedupeTTL: defaultDedupeTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewAggregatorWithoutMetrics создаёт агрегатор без метрик (для тестов).
func NewAggregatorWithoutMetrics(
	analytics domain.AnalyticsRepository,
	inventory domain.InventoryRepository,
	processed domain.ProcessedEventRepository,
	logger *log.Entry,
) *Aggregator {
	a := NewAggregator(analytics, inventory, processed, logger)
	a.metrics = nil
	return a
}

// HandleSaleCompleted накапливает аналитику по каждой книге завершённой
// продажи. Позиции одной книги предварительно сводятся в одну запись,
// так что dedupe-ключ (консюмер + тип события + продажа + книга)
// покрывает весь вклад книги целиком. Ключ фиксируется после успешного
// сохранения: временный сбой оставляет вклад непомеченным, и повторная
// доставка применяет его заново.
func (a *Aggregator) HandleSaleCompleted(sale domain.Sale) error {
	start := a.now()
	defer a.observe(start)

	// Оконные счётчики привязаны к дате создания продажи.
	saleDate := sale.CreatedAt

	for _, item := range groupItems(sale.Items) {
		key := domain.DedupeKey(consumerName, string(kafka.EventTypeSaleCompleted), sale.ID, item.BookID)
		applied, err := a.processed.Seen(key)
		if err != nil {
			return fmt.Errorf("check dedupe %s: %w", key, err)
		}
		if applied {
			a.duplicateSkipped(sale.ID, item.BookID)
			continue
		}

		if err := a.applyItem(item, saleDate); err != nil {
			return fmt.Errorf("apply analytics for %s: %w", item.BookID, err)
		}

		if err := a.processed.MarkProcessed(key, a.now().Add(a.dedupeTTL)); err != nil &&
			!errors.Is(err, domain.ErrEventAlreadyProcessed) {
			return fmt.Errorf("mark processed %s: %w", key, err)
		}

		a.logger.WithFields(log.Fields{
			"sale_id": sale.ID,
			"book_id": item.BookID,
			"units":   item.Qty,
		}).Debug("analytics updated")
	}

	if a.metrics != nil {
		a.metrics.RecordEventConsumed(consumerName, string(kafka.EventTypeSaleCompleted))
	}
	return nil
}

func (a *Aggregator) applyItem(item groupedItem, saleDate time.Time) error {
	record, err := a.analytics.Get(item.BookID)
	if err != nil {
		if !errors.Is(err, domain.ErrAnalyticsNotFound) {
			return err
		}
		record = domain.BookAnalytics{BookID: item.BookID}
	}

	record.TotalUnitsSold += int64(item.Qty)
	record.TotalRevenueMinor += item.SubtotalMinor

	if record.FirstSaleDate == nil || saleDate.Before(*record.FirstSaleDate) {
		d := saleDate
		record.FirstSaleDate = &d
	}
	if record.LastSaleDate == nil || saleDate.After(*record.LastSaleDate) {
		d := saleDate
		record.LastSaleDate = &d
	}

	// Оконные счётчики только накапливаются: вклад попадает в окно по
	// дате продажи на момент обработки и позже не вычитается.
	now := a.now()
	age := now.Sub(saleDate)
	if age <= windowShort {
		record.SalesLast7Days += int64(item.Qty)
	}
	if age <= windowMedium {
		record.SalesLast30Days += int64(item.Qty)
	}
	if age <= windowLong {
		record.SalesLast90Days += int64(item.Qty)
	}

	a.deriveRates(&record)
	record.UpdatedAt = now

	return a.analytics.Save(record)
}

// deriveRates пересчитывает оборачиваемость и оценку дней до исчерпания
// остатка по продажам за 30 дней и текущему остатку.
func (a *Aggregator) deriveRates(record *domain.BookAnalytics) {
	inv, err := a.inventory.Get(record.BookID)
	if err != nil {
		if !errors.Is(err, domain.ErrInventoryNotFound) {
			a.logger.WithField("book_id", record.BookID).
				WithError(err).Warn("inventory lookup failed, rates unchanged")
			return
		}
		// Без записи остатка показатели темпа не определены.
		record.RotationRate = 0
		record.DaysToSell = 0
		return
	}

	stock := int64(inv.CurrentStock)
	sales30 := record.SalesLast30Days

	switch {
	case stock > 0:
		record.RotationRate = float64(sales30) / float64(stock) * 12
		if sales30 > 0 {
			perDay := float64(sales30) / 30.0
			record.DaysToSell = int32(math.Ceil(float64(stock) / perDay))
		} else {
			record.DaysToSell = domain.DaysToSellNoSignal
		}
	default:
		// Остаток исчерпан: продавать нечего, спрос при этом был.
		record.DaysToSell = 0
		if sales30 > 0 && record.RotationRate < 12 {
			record.RotationRate = 12
		}
	}
}

// HandleOutboxMessage — адаптер для in-process шины.
func (a *Aggregator) HandleOutboxMessage(msg domain.OutboxMessage) error {
	event, err := kafka.ParseSaleEvent(msg.Payload)
	if err != nil {
		return err
	}
	return a.dispatch(event)
}

// HandleKafkaMessage — адаптер для Kafka consumer group.
func (a *Aggregator) HandleKafkaMessage(_ context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message.Value)
	if err != nil {
		return err
	}
	event, err := kafka.ParseSaleEvent(envelope.Payload)
	if err != nil {
		return err
	}
	return a.dispatch(event)
}

func (a *Aggregator) dispatch(event *kafka.SaleEvent) error {
	switch event.EventType {
	case kafka.EventTypeSaleCompleted:
		return a.HandleSaleCompleted(event.Sale.ToDomain())
	default:
		// Созданные и отменённые продажи аналитику не меняют.
		return nil
	}
}

func (a *Aggregator) duplicateSkipped(saleID, bookID string) {
	a.logger.WithFields(log.Fields{
		"sale_id": saleID,
		"book_id": bookID,
	}).Debug("duplicate delivery skipped")
	if a.metrics != nil {
		a.metrics.RecordDuplicateSkipped(consumerName)
	}
}

func (a *Aggregator) observe(start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordConsumerDuration(consumerName, time.Since(start))
	}
}

// groupedItem — агрегированный вклад одной книги в продаже.
type groupedItem struct {
	BookID        string
	Qty           int32
	SubtotalMinor int64
}

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
