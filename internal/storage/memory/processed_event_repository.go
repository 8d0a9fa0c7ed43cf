package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

type processedEvent struct {
	key       string
	ttlAt     time.Time
	createdAt time.Time
}

// processedEventRepositoryInMemory хранит dedupe-ключи применённых событий.
type processedEventRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]processedEvent
}

// NewProcessedEventRepository создаёт in-memory реализацию ProcessedEventRepository.
func NewProcessedEventRepository() domain.ProcessedEventRepository {
	return &processedEventRepositoryInMemory{
		items: make(map[string]processedEvent),
	}
}

// MarkProcessed фиксирует ключ; повторная фиксация возвращает
// ErrEventAlreadyProcessed. Проверка и запись атомарны.
func (r *processedEventRepositoryInMemory) MarkProcessed(key string, ttlAt time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrEventAlreadyProcessed
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(30 * 24 * time.Hour)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key]; ok {
		return domain.ErrEventAlreadyProcessed
	}

	r.items[key] = processedEvent{key: key, ttlAt: ttlAt, createdAt: now}
	return nil
}

// Seen сообщает, применялось ли событие с таким ключом.
func (r *processedEventRepositoryInMemory) Seen(key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[strings.TrimSpace(key)]
	return ok, nil
}

// DeleteExpired удаляет до limit ключей с истёкшим TTL.
func (r *processedEventRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.items {
		if record.ttlAt.After(before) {
			continue
		}

		delete(r.items, key)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepositoryInMemory)(nil)
