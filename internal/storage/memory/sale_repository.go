package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// saleRepositoryInMemory — простая in-memory реализация SaleRepository.
type saleRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Sale
}

// NewSaleRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewSaleRepository() domain.SaleRepository {
	return &saleRepositoryInMemory{
		items: make(map[string]domain.Sale),
	}
}

// Create сохраняет новую продажу, если ID ещё не занят.
func (r *saleRepositoryInMemory) Create(sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[sale.ID]; exists {
		return domain.ErrSaleVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[sale.ID] = cloneSale(sale)
	return nil
}

// Get возвращает продажу или ErrSaleNotFound, если её нет.
func (r *saleRepositoryInMemory) Get(id string) (domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return cloneSale(sale), nil
}

// Save перезаписывает продажу, проверяя версию (optimistic locking).
func (r *saleRepositoryInMemory) Save(sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[sale.ID]
	if !ok {
		return domain.ErrSaleNotFound
	}
	if current.Version != sale.Version {
		return domain.ErrSaleVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	sale.Version++
	r.items[sale.ID] = cloneSale(sale)
	return nil
}

// ListCompletedBetween возвращает завершённые продажи за период по CreatedAt.
func (r *saleRepositoryInMemory) ListCompletedBetween(from, to time.Time) ([]domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range r.items {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		result = append(result, cloneSale(sale))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// DailySales агрегирует проданные единицы книги по календарным дням (UTC).
func (r *saleRepositoryInMemory) DailySales(bookID string, from, to time.Time) ([]domain.DailySales, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDay := make(map[time.Time]int64)
	for _, sale := range r.items {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		for _, item := range sale.Items {
			if item.BookID != bookID {
				continue
			}
			day := sale.CreatedAt.UTC().Truncate(24 * time.Hour)
			byDay[day] += int64(item.Qty)
		}
	}

	result := make([]domain.DailySales, 0, len(byDay))
	for day, units := range byDay {
		result = append(result, domain.DailySales{BookID: bookID, Day: day, Units: units})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})

	return result, nil
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = append([]domain.SaleItem(nil), src.Items...)
	if src.CompletedAt != nil {
		t := *src.CompletedAt
		dst.CompletedAt = &t
	}
	if src.CancelledAt != nil {
		t := *src.CancelledAt
		dst.CancelledAt = &t
	}
	return dst
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
