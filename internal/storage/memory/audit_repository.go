package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// auditRepositoryInMemory — append-only журнал аудита в памяти.
type auditRepositoryInMemory struct {
	mu      sync.RWMutex
	records []domain.AuditRecord
}

// NewAuditRepository создаёт in-memory реализацию AuditRepository.
func NewAuditRepository() domain.AuditRepository {
	return &auditRepositoryInMemory{}
}

// Append добавляет запись в журнал.
func (r *auditRepositoryInMemory) Append(record domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records = append(r.records, record)
	return nil
}

// ListBetween возвращает записи за период в порядке добавления.
func (r *auditRepositoryInMemory) ListBetween(from, to time.Time) ([]domain.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.AuditRecord, 0)
	for _, record := range r.records {
		if record.CreatedAt.Before(from) || record.CreatedAt.After(to) {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

var _ domain.AuditRepository = (*auditRepositoryInMemory)(nil)
