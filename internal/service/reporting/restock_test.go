package reporting

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

func TestRecommendedQty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		current, minStock, maxStock, want int32
	}{
		{2, 5, 20, 18},  // дозаказ до максимума
		{2, 5, 0, 8},    // без максимума — до 2*min
		{30, 5, 20, 0},  // выше цели дозаказ не нужен
		{0, 5, 10, 10},  // пустая полка
	}
	for _, tc := range cases {
		if got := recommendedQty(tc.current, tc.minStock, tc.maxStock); got != tc.want {
			t.Fatalf("recommendedQty(%d,%d,%d) = %d, want %d",
				tc.current, tc.minStock, tc.maxStock, got, tc.want)
		}
	}
}

func TestDepletionDays(t *testing.T) {
	t.Parallel()

	if got := depletionDays(0, 5); got != 0 {
		t.Fatalf("empty stock must deplete in 0 days, got %d", got)
	}
	if got := depletionDays(10, 0); got != math.MaxInt32 {
		t.Fatalf("no sales rate must mean no depletion signal, got %d", got)
	}
	if got := depletionDays(10, 2.5); got != 4 {
		t.Fatalf("expected ceil(10/2.5)=4, got %d", got)
	}
	if got := depletionDays(10, 3); got != 4 {
		t.Fatalf("expected ceil(10/3)=4, got %d", got)
	}
}

func TestUrgencyOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  RestockRecommendation
		want Urgency
	}{
		{"empty stock", RestockRecommendation{CurrentStock: 0, MinStock: 5, DepletionDays: math.MaxInt32}, UrgencyCritical},
		{"depletes this week", RestockRecommendation{CurrentStock: 4, MinStock: 5, DepletionDays: 6}, UrgencyCritical},
		{"deep below min", RestockRecommendation{CurrentStock: 1, MinStock: 5, DepletionDays: math.MaxInt32}, UrgencyHigh},
		{"depletes in two weeks", RestockRecommendation{CurrentStock: 4, MinStock: 5, DepletionDays: 14}, UrgencyHigh},
		{"half of min", RestockRecommendation{CurrentStock: 2, MinStock: 5, DepletionDays: math.MaxInt32}, UrgencyMedium},
		{"depletes in a month", RestockRecommendation{CurrentStock: 4, MinStock: 5, DepletionDays: 25}, UrgencyMedium},
		{"slightly below min", RestockRecommendation{CurrentStock: 4, MinStock: 5, DepletionDays: math.MaxInt32}, UrgencyLow},
	}
	for _, tc := range cases {
		if got := urgencyOf(tc.rec); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestService_RestockRecommendations(t *testing.T) {
	t.Parallel()

	service, salesRepo, inventoryRepo, _ := newReportingFixture(t, nil)

	records := []domain.InventoryRecord{
		{BookID: "book-empty", CurrentStock: 0, MinStock: 5, MaxStock: 20},
		{BookID: "book-low", CurrentStock: 4, MinStock: 5, MaxStock: 20},
		{BookID: "book-fine", CurrentStock: 50, MinStock: 5, MaxStock: 60},
	}
	for _, r := range records {
		if err := inventoryRepo.Put(r); err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}
	// Немного продаж, чтобы у book-low был прогнозный темп.
	sale := domain.Sale{
		ID:        "sale-1",
		Status:    domain.SaleStatusCompleted,
		CreatedAt: reportNow.Add(-24 * time.Hour),
		Items:     []domain.SaleItem{{BookID: "book-low", Qty: 2}},
	}
	if err := salesRepo.Create(sale); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	recommendations, err := service.RestockRecommendations(context.Background())
	if err != nil {
		t.Fatalf("recommendations failed: %v", err)
	}
	if len(recommendations) != 2 {
		t.Fatalf("only records below min must be reported, got %d", len(recommendations))
	}

	// Сортировка по убыванию срочности: пустая полка первой.
	if recommendations[0].BookID != "book-empty" || recommendations[0].Urgency != UrgencyCritical {
		t.Fatalf("expected critical book-empty first, got %+v", recommendations[0])
	}
	if recommendations[0].RecommendedQty != 20 {
		t.Fatalf("expected refill to max 20, got %d", recommendations[0].RecommendedQty)
	}
	if recommendations[1].BookID != "book-low" {
		t.Fatalf("expected book-low second, got %+v", recommendations[1])
	}
}
