package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository создаёт PostgreSQL-реализацию AuditRepository.
func NewAuditRepository(store *Store) domain.AuditRepository {
	return &auditRepository{db: store.DB()}
}

func (r *auditRepository) Append(record domain.AuditRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, entity_type, entity_id, operation, actor, detail, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		record.ID, string(record.EntityType), record.EntityID,
		record.Operation, record.Actor, record.Detail, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	return nil
}

func (r *auditRepository) ListBetween(from, to time.Time) ([]domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, operation, actor, detail, created_at
		FROM audit_log
		WHERE created_at >= $1
		  AND created_at <= $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var record domain.AuditRecord
		var entityType string
		if err := rows.Scan(
			&record.ID, &entityType, &record.EntityID,
			&record.Operation, &record.Actor, &record.Detail, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.EntityType = domain.AuditEntityType(entityType)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return records, nil
}

var _ domain.AuditRepository = (*auditRepository)(nil)
