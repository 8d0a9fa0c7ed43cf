package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// EventType определяет тип события жизненного цикла продажи.
type EventType string

const (
	// EventTypeSaleCreated — информационное событие, без обязательных
	// побочных эффектов у консюмеров.
	EventTypeSaleCreated EventType = "sale.created"
	// EventTypeSaleCompleted запускает списание остатков и обновление аналитики.
	EventTypeSaleCompleted EventType = "sale.completed"
	// EventTypeSaleCancelled запускает компенсирующий возврат остатков.
	EventTypeSaleCancelled EventType = "sale.cancelled"
)

// Topics для Kafka. Ключ сообщения — ID продажи, поэтому порядок
// доставки гарантирован в пределах одной продажи; кросс-ключевой
// порядок не гарантируется и на него нельзя полагаться.
const (
	TopicSaleEvents      = "backoffice.sale.events"
	TopicDeadLetterQueue = "backoffice.dlq"
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// SaleItemPayload — позиция продажи в wire-формате события.
type SaleItemPayload struct {
	BookID         string `json:"book_id"`
	Qty            int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	DiscountMinor  int64  `json:"discount_minor"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

// SalePayload — полная продажа с позициями, как её несут события
// sale.completed и sale.cancelled.
type SalePayload struct {
	SaleID        string            `json:"sale_id"`
	SellerID      string            `json:"seller_id"`
	Status        string            `json:"status"`
	Items         []SaleItemPayload `json:"items"`
	SubtotalMinor int64             `json:"subtotal_minor"`
	DiscountMinor int64             `json:"discount_minor"`
	TaxMinor      int64             `json:"tax_minor"`
	TotalMinor    int64             `json:"total_minor"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// SaleEvent — конверт события продажи.
type SaleEvent struct {
	EventType EventType   `json:"event_type"`
	SaleID    string      `json:"sale_id"`
	Timestamp time.Time   `json:"timestamp"`
	Sale      SalePayload `json:"sale"`
}

// NewSaleEvent строит конверт события из доменной продажи.
func NewSaleEvent(eventType EventType, sale domain.Sale) *SaleEvent {
	return &SaleEvent{
		EventType: eventType,
		SaleID:    sale.ID,
		Timestamp: time.Now().UTC(),
		Sale:      NewSalePayload(sale),
	}
}

// NewSalePayload переводит доменную продажу в wire-формат.
func NewSalePayload(sale domain.Sale) SalePayload {
	items := make([]SaleItemPayload, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, SaleItemPayload{
			BookID:         item.BookID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			DiscountMinor:  item.DiscountMinor,
			SubtotalMinor:  item.SubtotalMinor,
		})
	}
	return SalePayload{
		SaleID:        sale.ID,
		SellerID:      sale.SellerID,
		Status:        string(sale.Status),
		Items:         items,
		SubtotalMinor: sale.SubtotalMinor,
		DiscountMinor: sale.DiscountMinor,
		TaxMinor:      sale.TaxMinor,
		TotalMinor:    sale.TotalMinor,
		PaymentMethod: sale.PaymentMethod,
		CreatedAt:     sale.CreatedAt,
	}
}

// ToDomain восстанавливает доменную продажу из wire-формата.
func (p SalePayload) ToDomain() domain.Sale {
	items := make([]domain.SaleItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, domain.SaleItem{
			BookID:         item.BookID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			DiscountMinor:  item.DiscountMinor,
			SubtotalMinor:  item.SubtotalMinor,
		})
	}
	return domain.Sale{
		ID:            p.SaleID,
		SellerID:      p.SellerID,
		Status:        domain.SaleStatus(p.Status),
		Items:         items,
		SubtotalMinor: p.SubtotalMinor,
		DiscountMinor: p.DiscountMinor,
		TaxMinor:      p.TaxMinor,
		TotalMinor:    p.TotalMinor,
		PaymentMethod: p.PaymentMethod,
		CreatedAt:     p.CreatedAt,
	}
}

// ParseSaleEvent парсит SaleEvent из сырого payload.
func ParseSaleEvent(data []byte) (*SaleEvent, error) {
	var event SaleEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal sale event: %w", err)
	}
	return &event, nil
}

// Envelope — обёртка outbox-сообщения на проводе.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ParseEnvelope парсит конверт outbox-сообщения из Kafka.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return &envelope, nil
}
