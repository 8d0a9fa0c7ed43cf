package sales

import (
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/audit"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/memory"
)

type fixture struct {
	orchestrator *Orchestrator
	sales        domain.SaleRepository
	inventory    domain.InventoryRepository
	outbox       interface {
		domain.OutboxRepository
		AllPending() []domain.OutboxMessage
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewProductCatalog(
		domain.Product{ID: "book-1", Title: "The Go Programming Language", PriceMinor: 1000, Active: true},
		domain.Product{ID: "book-2", Title: "Designing Data-Intensive Applications", PriceMinor: 2500, Active: true},
	)
	salesRepo := memory.NewSaleRepository()
	inventoryRepo := memory.NewInventoryRepository()
	outboxRepo := memory.NewOutboxRepository()
	auditRepo := memory.NewAuditRepository()

	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 10, MinStock: 2}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-2", CurrentStock: 5, MinStock: 1}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	orchestrator := NewOrchestratorWithoutMetrics(
		salesRepo, inventoryRepo, catalog, outboxRepo,
		audit.NewRecorder(auditRepo, nil, nil), nil,
	)
	return &fixture{
		orchestrator: orchestrator,
		sales:        salesRepo,
		inventory:    inventoryRepo,
		outbox:       outboxRepo,
	}
}

func TestOrchestrator_CreateSale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-1", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if sale.Status != domain.SaleStatusPending {
		t.Fatalf("expected pending status, got %s", sale.Status)
	}
	if sale.SubtotalMinor != 2000 || sale.TaxMinor != 380 || sale.TotalMinor != 2380 {
		t.Fatalf("unexpected totals: subtotal=%d tax=%d total=%d",
			sale.SubtotalMinor, sale.TaxMinor, sale.TotalMinor)
	}

	// Создание продажи не трогает остатки: списание выполняет консюмер.
	record, err := f.inventory.Get("book-1")
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if record.CurrentStock != 10 {
		t.Fatalf("create must not mutate stock, got %d", record.CurrentStock)
	}

	pending := f.outbox.AllPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != string(kafka.EventTypeSaleCreated) {
		t.Fatalf("expected sale.created event, got %s", pending[0].EventType)
	}
	if pending[0].AggregateID != sale.ID {
		t.Fatalf("event aggregate must be the sale id")
	}

	event, err := kafka.ParseSaleEvent(pending[0].Payload)
	if err != nil {
		t.Fatalf("parse event payload: %v", err)
	}
	if event.Sale.TotalMinor != 2380 || len(event.Sale.Items) != 1 {
		t.Fatalf("unexpected event payload: %+v", event.Sale)
	}
}

func TestOrchestrator_CreateSale_UnknownProduct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "ghost", Qty: 1}},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown product ghost") {
		t.Fatalf("error must name the product, got %q", err.Error())
	}
}

func TestOrchestrator_CreateSale_InsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-2", Qty: 6}},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient stock for book book-2: available 5, requested 6") {
		t.Fatalf("error must name availability and request, got %q", err.Error())
	}

	// Отклонённая продажа не оставляет событий.
	if got := len(f.outbox.AllPending()); got != 0 {
		t.Fatalf("rejected sale must not enqueue events, got %d", got)
	}
}

func TestOrchestrator_CreateSale_MissingInventoryMeansZero(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	catalog := memory.NewProductCatalog(domain.Product{ID: "book-3", PriceMinor: 700, Active: true})
	f.orchestrator.catalog = catalog

	_, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-3", Qty: 1}},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "available 0, requested 1") {
		t.Fatalf("missing inventory record must mean zero availability, got %q", err.Error())
	}
}

func TestOrchestrator_CreateSale_InputValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cases := []struct {
		name  string
		input CreateSaleInput
	}{
		{"no items", CreateSaleInput{SellerID: "s"}},
		{"zero qty", CreateSaleInput{SellerID: "s", Items: []CreateSaleItemInput{{BookID: "book-1", Qty: 0}}}},
		{"negative discount", CreateSaleInput{SellerID: "s", DiscountMinor: -1, Items: []CreateSaleItemInput{{BookID: "book-1", Qty: 1}}}},
		{"empty book id", CreateSaleInput{SellerID: "s", Items: []CreateSaleItemInput{{BookID: "", Qty: 1}}}},
	}
	for _, tc := range cases {
		if _, err := f.orchestrator.CreateSale(tc.input); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestOrchestrator_UpdateStatus_Complete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	updated, err := f.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCompleted, "card")
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if updated.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed_at must be set")
	}
	if updated.PaymentMethod != "card" {
		t.Fatalf("payment method must be stored, got %q", updated.PaymentMethod)
	}

	pending := f.outbox.AllPending()
	if len(pending) != 2 {
		t.Fatalf("expected created + completed events, got %d", len(pending))
	}
	if pending[1].EventType != string(kafka.EventTypeSaleCompleted) {
		t.Fatalf("expected sale.completed, got %s", pending[1].EventType)
	}
}

func TestOrchestrator_UpdateStatus_PaymentMethodRequired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if _, err := f.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCompleted, ""); !domain.IsValidation(err) {
		t.Fatalf("completing without payment method must fail validation, got %v", err)
	}
}

func TestOrchestrator_UpdateStatus_TerminalRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := f.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCancelled, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Терминальная продажа не меняет статус повторно.
	if _, err := f.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCompleted, "card"); !errors.Is(err, domain.ErrSaleAlreadyFinal) {
		t.Fatalf("expected ErrSaleAlreadyFinal, got %v", err)
	}
}

func TestOrchestrator_UpdateStatus_InvalidTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, err := f.orchestrator.CreateSale(CreateSaleInput{
		SellerID: "seller-1",
		Items:    []CreateSaleItemInput{{BookID: "book-1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if _, err := f.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusPending, ""); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if _, err := f.orchestrator.UpdateStatus("missing", domain.SaleStatusCompleted, "card"); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}
