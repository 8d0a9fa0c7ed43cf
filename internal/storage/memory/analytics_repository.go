package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// analyticsRepositoryInMemory — in-memory реализация AnalyticsRepository.
type analyticsRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.BookAnalytics
}

// NewAnalyticsRepository создаёт in-memory реализацию AnalyticsRepository.
func NewAnalyticsRepository() domain.AnalyticsRepository {
	return &analyticsRepositoryInMemory{
		items: make(map[string]domain.BookAnalytics),
	}
}

// Get возвращает аналитику книги или ErrAnalyticsNotFound.
func (r *analyticsRepositoryInMemory) Get(bookID string) (domain.BookAnalytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	analytics, ok := r.items[bookID]
	if !ok {
		return domain.BookAnalytics{}, domain.ErrAnalyticsNotFound
	}
	return cloneAnalytics(analytics), nil
}

// Save создаёт или перезаписывает аналитику книги целиком.
func (r *analyticsRepositoryInMemory) Save(analytics domain.BookAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if analytics.UpdatedAt.IsZero() {
		analytics.UpdatedAt = time.Now().UTC()
	}
	r.items[analytics.BookID] = cloneAnalytics(analytics)
	return nil
}

// List возвращает аналитику всех книг, отсортированную по BookID.
func (r *analyticsRepositoryInMemory) List() ([]domain.BookAnalytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.BookAnalytics, 0, len(r.items))
	for _, analytics := range r.items {
		result = append(result, cloneAnalytics(analytics))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BookID < result[j].BookID
	})
	return result, nil
}

func cloneAnalytics(src domain.BookAnalytics) domain.BookAnalytics {
	dst := src
	if src.FirstSaleDate != nil {
		t := *src.FirstSaleDate
		dst.FirstSaleDate = &t
	}
	if src.LastSaleDate != nil {
		t := *src.LastSaleDate
		dst.LastSaleDate = &t
	}
	return dst
}

var _ domain.AnalyticsRepository = (*analyticsRepositoryInMemory)(nil)
