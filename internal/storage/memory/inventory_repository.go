package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// inventoryRepositoryInMemory хранит остатки и журнал движений.
// Один мьютекс покрывает и запись остатка, и добавление движения,
// поэтому пара "остаток + движение" меняется атомарно.
type inventoryRepositoryInMemory struct {
	mu        sync.RWMutex
	records   map[string]domain.InventoryRecord
	movements []domain.StockMovement
}

// NewInventoryRepository создаёт in-memory реализацию InventoryRepository.
func NewInventoryRepository() domain.InventoryRepository {
	return &inventoryRepositoryInMemory{
		records: make(map[string]domain.InventoryRecord),
	}
}

// Get возвращает запись остатка или ErrInventoryNotFound.
func (r *inventoryRepositoryInMemory) Get(bookID string) (domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[bookID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return record, nil
}

// Put создаёт или перезаписывает запись остатка.
func (r *inventoryRepositoryInMemory) Put(record domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	r.records[record.BookID] = record
	return nil
}

// ApplyDelta атомарно изменяет остаток и добавляет одно движение.
// Остаток усечётся на нуле; фактическое изменение видно в движении.
func (r *inventoryRepositoryInMemory) ApplyDelta(bookID string, delta int32, movementType domain.MovementType, referenceID, note string) (domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[bookID]
	if !ok {
		return domain.StockMovement{}, domain.ErrInventoryNotFound
	}

	before := record.CurrentStock
	after := before + delta
	if after < 0 {
		after = 0
	}

	now := time.Now().UTC()
	record.CurrentStock = after
	record.UpdatedAt = now
	r.records[bookID] = record

	movement := domain.StockMovement{
		ID:            uuid.NewString(),
		BookID:        bookID,
		Type:          movementType,
		QuantityDelta: after - before,
		StockBefore:   before,
		StockAfter:    after,
		ReferenceID:   referenceID,
		Note:          note,
		CreatedAt:     now,
	}
	r.movements = append(r.movements, movement)

	return movement, nil
}

// MovementsByReference возвращает движения источника в порядке добавления.
func (r *inventoryRepositoryInMemory) MovementsByReference(referenceID string) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockMovement, 0)
	for _, m := range r.movements {
		if m.ReferenceID == referenceID {
			result = append(result, m)
		}
	}
	return result, nil
}

// ListMovements возвращает последние движения книги, не более limit (если >0).
func (r *inventoryRepositoryInMemory) ListMovements(bookID string, limit int) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockMovement, 0)
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].BookID != bookID {
			continue
		}
		result = append(result, r.movements[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// List возвращает все записи остатков.
func (r *inventoryRepositoryInMemory) List() ([]domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.InventoryRecord, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, record)
	}
	return result, nil
}

// ListBelowMin возвращает записи с остатком ниже минимального порога.
func (r *inventoryRepositoryInMemory) ListBelowMin() ([]domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.InventoryRecord, 0)
	for _, record := range r.records {
		if record.BelowMin() {
			result = append(result, record)
		}
	}
	return result, nil
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
