package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

func TestNewSaleEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	sale := domain.Sale{
		ID:            "sale-1",
		SellerID:      "seller-1",
		Status:        domain.SaleStatusCompleted,
		SubtotalMinor: 2000,
		TaxMinor:      380,
		TotalMinor:    2380,
		PaymentMethod: "card",
		CreatedAt:     now,
		Items: []domain.SaleItem{
			{BookID: "book-1", Qty: 2, UnitPriceMinor: 1000, SubtotalMinor: 2000},
		},
	}

	event := NewSaleEvent(EventTypeSaleCompleted, sale)
	if event.EventType != EventTypeSaleCompleted || event.SaleID != "sale-1" {
		t.Fatalf("unexpected envelope: %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("event timestamp must be set")
	}

	restored := event.Sale.ToDomain()
	if restored.ID != sale.ID || restored.TotalMinor != sale.TotalMinor {
		t.Fatalf("round trip lost sale fields: %+v", restored)
	}
	if len(restored.Items) != 1 || restored.Items[0].Qty != 2 {
		t.Fatalf("round trip lost items: %+v", restored.Items)
	}
	if restored.Status != domain.SaleStatusCompleted {
		t.Fatalf("round trip lost status: %s", restored.Status)
	}
}

func TestParseSaleEvent(t *testing.T) {
	t.Parallel()

	original := NewSaleEvent(EventTypeSaleCreated, domain.Sale{ID: "sale-1"})
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParseSaleEvent(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.EventType != EventTypeSaleCreated || parsed.SaleID != "sale-1" {
		t.Fatalf("unexpected parsed event: %+v", parsed)
	}

	if _, err := ParseSaleEvent([]byte("not json")); err == nil {
		t.Fatal("garbage payload must fail to parse")
	}
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	envelope := Envelope{
		ID:          "msg-1",
		AggregateID: "sale-1",
		EventType:   string(EventTypeSaleCompleted),
		Payload:     json.RawMessage(`{"sale_id":"sale-1"}`),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.AggregateID != "sale-1" || parsed.EventType != string(EventTypeSaleCompleted) {
		t.Fatalf("unexpected envelope: %+v", parsed)
	}

	if _, err := ParseEnvelope([]byte("{")); err == nil {
		t.Fatal("truncated envelope must fail to parse")
	}
}
