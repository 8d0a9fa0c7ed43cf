package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

type processedEventRepository struct {
	db *sql.DB
}

// NewProcessedEventRepository создаёт PostgreSQL-реализацию
// ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) domain.ProcessedEventRepository {
	return &processedEventRepository{db: store.DB()}
}

// MarkProcessed атомарно фиксирует dedupe-ключ: конфликт по первичному
// ключу означает, что событие уже применялось.
func (r *processedEventRepository) MarkProcessed(key string, ttlAt time.Time) error {
	if key == "" {
		return errors.New("dedupe key is required")
	}
	if ttlAt.IsZero() {
		ttlAt = time.Now().UTC().Add(30 * 24 * time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_events (dedupe_key, ttl_at, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (dedupe_key) DO NOTHING
	`, key, ttlAt)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("processed event rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrEventAlreadyProcessed
	}

	return nil
}

func (r *processedEventRepository) Seen(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var found string
	err := r.db.QueryRowContext(ctx, `
		SELECT dedupe_key FROM processed_events WHERE dedupe_key = $1
	`, key).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check processed event: %w", err)
}

func (r *processedEventRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)

	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE dedupe_key IN (
				SELECT dedupe_key
				FROM processed_events
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE ttl_at <= $1
		`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired processed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("processed events rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepository)(nil)
