package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/memory"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newAggregatorFixture(t *testing.T) (*Aggregator, domain.AnalyticsRepository, domain.InventoryRepository) {
	t.Helper()

	analyticsRepo := memory.NewAnalyticsRepository()
	inventoryRepo := memory.NewInventoryRepository()
	aggregator := NewAggregatorWithoutMetrics(analyticsRepo, inventoryRepo, memory.NewProcessedEventRepository(), nil)
	aggregator.now = func() time.Time { return testNow }
	return aggregator, analyticsRepo, inventoryRepo
}

func saleAt(createdAt time.Time, items ...domain.SaleItem) domain.Sale {
	return domain.Sale{
		ID:        "sale-1",
		Status:    domain.SaleStatusCompleted,
		Items:     items,
		CreatedAt: createdAt,
	}
}

func TestAggregator_HandleSaleCompleted_Accumulates(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, inventoryRepo := newAggregatorFixture(t)
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 20}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("handle completed failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.TotalUnitsSold != 2 || record.TotalRevenueMinor != 2000 {
		t.Fatalf("unexpected totals: %+v", record)
	}
	if record.SalesLast7Days != 2 || record.SalesLast30Days != 2 || record.SalesLast90Days != 2 {
		t.Fatalf("fresh sale must land in all windows: %+v", record)
	}
	if record.FirstSaleDate == nil || record.LastSaleDate == nil {
		t.Fatal("sale dates must be tracked")
	}

	// rotation = 2/20*12 = 1.2; days to sell = ceil(20 / (2/30)) = 300
	if record.RotationRate != 1.2 {
		t.Fatalf("expected rotation 1.2, got %f", record.RotationRate)
	}
	if record.DaysToSell != 300 {
		t.Fatalf("expected 300 days to sell, got %d", record.DaysToSell)
	}
}

func TestAggregator_HandleSaleCompleted_WindowsBySaleDate(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, inventoryRepo := newAggregatorFixture(t)
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	// Продажа 40-дневной давности: мимо 7- и 30-дневного окон.
	old := saleAt(testNow.Add(-40*24*time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 3, SubtotalMinor: 3000})
	if err := aggregator.HandleSaleCompleted(old); err != nil {
		t.Fatalf("handle completed failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.SalesLast7Days != 0 || record.SalesLast30Days != 0 {
		t.Fatalf("old sale must not land in short windows: %+v", record)
	}
	if record.SalesLast90Days != 3 {
		t.Fatalf("old sale must land in the 90-day window, got %d", record.SalesLast90Days)
	}
	if record.TotalUnitsSold != 3 {
		t.Fatalf("lifetime totals must always accumulate, got %d", record.TotalUnitsSold)
	}

	// Нет продаж за 30 дней: признаков скорого исчерпания нет.
	if record.DaysToSell != domain.DaysToSellNoSignal {
		t.Fatalf("expected no-signal days to sell, got %d", record.DaysToSell)
	}
	if record.RotationRate != 0 {
		t.Fatalf("expected zero rotation, got %f", record.RotationRate)
	}
}

func TestAggregator_HandleSaleCompleted_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, inventoryRepo := newAggregatorFixture(t)
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.TotalUnitsSold != 2 || record.TotalRevenueMinor != 2000 {
		t.Fatalf("redelivery must not double-count: %+v", record)
	}
}

// flakyAnalyticsRepo отдаёт временную ошибку на первых failures вызовах
// Save, дальше делегирует реальному хранилищу.
type flakyAnalyticsRepo struct {
	domain.AnalyticsRepository
	failures int
}

func (f *flakyAnalyticsRepo) Save(record domain.BookAnalytics) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("storage temporarily unavailable")
	}
	return f.AnalyticsRepository.Save(record)
}

func TestAggregator_HandleSaleCompleted_RetryAfterTransientFailure(t *testing.T) {
	t.Parallel()

	analyticsRepo := memory.NewAnalyticsRepository()
	inventoryRepo := memory.NewInventoryRepository()
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	flaky := &flakyAnalyticsRepo{AnalyticsRepository: analyticsRepo, failures: 1}
	aggregator := NewAggregatorWithoutMetrics(flaky, inventoryRepo, memory.NewProcessedEventRepository(), nil)
	aggregator.now = func() time.Time { return testNow }

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})

	// Временный сбой сохранения: событие завершается ошибкой, вклад не
	// помечен обработанным и будет применён при повторной доставке.
	if err := aggregator.HandleSaleCompleted(sale); err == nil {
		t.Fatal("transient failure must surface as an error")
	}
	if _, err := analyticsRepo.Get("book-1"); !errors.Is(err, domain.ErrAnalyticsNotFound) {
		t.Fatalf("failed delivery must leave no record, got %v", err)
	}

	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.TotalUnitsSold != 2 || record.TotalRevenueMinor != 2000 {
		t.Fatalf("redelivery must apply the lost contribution exactly once: %+v", record)
	}
}

func TestAggregator_HandleSaleCompleted_GroupsDuplicateLines(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, inventoryRepo := newAggregatorFixture(t)
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 1, SubtotalMinor: 1000},
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("handle completed failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.TotalUnitsSold != 3 || record.TotalRevenueMinor != 3000 {
		t.Fatalf("duplicate lines must contribute once combined: %+v", record)
	}
}

func TestAggregator_DeriveRates_ZeroStock(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, inventoryRepo := newAggregatorFixture(t)
	if err := inventoryRepo.Put(domain.InventoryRecord{BookID: "book-1", CurrentStock: 0}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("handle completed failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.DaysToSell != 0 {
		t.Fatalf("zero stock means zero days to sell, got %d", record.DaysToSell)
	}
	if record.RotationRate < 12 {
		t.Fatalf("demand with empty shelf must floor rotation at 12, got %f", record.RotationRate)
	}
}

func TestAggregator_DeriveRates_NoInventoryRecord(t *testing.T) {
	t.Parallel()

	aggregator, analyticsRepo, _ := newAggregatorFixture(t)

	sale := saleAt(testNow.Add(-time.Hour),
		domain.SaleItem{BookID: "book-1", Qty: 2, SubtotalMinor: 2000})
	if err := aggregator.HandleSaleCompleted(sale); err != nil {
		t.Fatalf("handle completed failed: %v", err)
	}

	record, err := analyticsRepo.Get("book-1")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.RotationRate != 0 || record.DaysToSell != 0 {
		t.Fatalf("missing inventory record leaves rates undefined: %+v", record)
	}
	if record.TotalUnitsSold != 2 {
		t.Fatalf("counters must still accumulate, got %d", record.TotalUnitsSold)
	}
}
