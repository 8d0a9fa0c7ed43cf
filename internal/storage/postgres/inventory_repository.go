package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Get(bookID string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var record domain.InventoryRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT book_id, current_stock, min_stock, max_stock, updated_at
		FROM inventory
		WHERE book_id = $1
	`, bookID).Scan(
		&record.BookID, &record.CurrentStock, &record.MinStock, &record.MaxStock, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) Put(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory (book_id, current_stock, min_stock, max_stock, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (book_id) DO UPDATE
		SET current_stock = EXCLUDED.current_stock,
		    min_stock = EXCLUDED.min_stock,
		    max_stock = EXCLUDED.max_stock,
		    updated_at = EXCLUDED.updated_at
	`,
		record.BookID, record.CurrentStock, record.MinStock, record.MaxStock, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}

	return nil
}

// ApplyDelta изменяет остаток и добавляет движение в одной транзакции.
// Строка остатка блокируется FOR UPDATE, поэтому параллельные дельты
// по одной книге сериализуются на уровне БД. Остаток усечён на нуле,
// фактическое изменение отражается в движении.
func (r *inventoryRepository) ApplyDelta(bookID string, delta int32, movementType domain.MovementType, referenceID, note string) (domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StockMovement{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var before int32
	err = tx.QueryRowContext(ctx, `
		SELECT current_stock
		FROM inventory
		WHERE book_id = $1
		FOR UPDATE
	`, bookID).Scan(&before)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrInventoryNotFound
			return domain.StockMovement{}, err
		}
		return domain.StockMovement{}, fmt.Errorf("lock inventory row: %w", err)
	}

	after := before + delta
	if after < 0 {
		after = 0
	}
	now := time.Now().UTC()

	if _, err = tx.ExecContext(ctx, `
		UPDATE inventory
		SET current_stock = $1,
		    updated_at = $2
		WHERE book_id = $3
	`, after, now, bookID); err != nil {
		return domain.StockMovement{}, fmt.Errorf("update inventory stock: %w", err)
	}

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

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (
			id, book_id, movement_type, quantity_delta, stock_before,
			stock_after, reference_id, note, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		movement.ID, movement.BookID, string(movement.Type), movement.QuantityDelta,
		movement.StockBefore, movement.StockAfter, movement.ReferenceID, movement.Note, movement.CreatedAt,
	); err != nil {
		return domain.StockMovement{}, fmt.Errorf("insert stock movement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.StockMovement{}, fmt.Errorf("commit apply delta: %w", err)
	}

	return movement, nil
}

func (r *inventoryRepository) MovementsByReference(referenceID string) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryMovements(ctx, `
		SELECT id, book_id, movement_type, quantity_delta, stock_before,
		       stock_after, reference_id, note, created_at
		FROM stock_movements
		WHERE reference_id = $1
		ORDER BY created_at ASC, id ASC
	`, referenceID)
}

func (r *inventoryRepository) ListMovements(bookID string, limit int) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, book_id, movement_type, quantity_delta, stock_before,
		       stock_after, reference_id, note, created_at
		FROM stock_movements
		WHERE book_id = $1
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		return r.queryMovements(ctx, query+" LIMIT $2", bookID, limit)
	}
	return r.queryMovements(ctx, query, bookID)
}

func (r *inventoryRepository) List() ([]domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryRecords(ctx, `
		SELECT book_id, current_stock, min_stock, max_stock, updated_at
		FROM inventory
		ORDER BY book_id
	`)
}

func (r *inventoryRepository) ListBelowMin() ([]domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryRecords(ctx, `
		SELECT book_id, current_stock, min_stock, max_stock, updated_at
		FROM inventory
		WHERE current_stock < min_stock
		ORDER BY book_id
	`)
}

func (r *inventoryRepository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.InventoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		var record domain.InventoryRecord
		if err := rows.Scan(
			&record.BookID, &record.CurrentStock, &record.MinStock, &record.MaxStock, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inventory record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory records: %w", err)
	}

	return records, nil
}

func (r *inventoryRepository) queryMovements(ctx context.Context, query string, args ...any) ([]domain.StockMovement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var movement domain.StockMovement
		var movementType string
		if err := rows.Scan(
			&movement.ID, &movement.BookID, &movementType, &movement.QuantityDelta,
			&movement.StockBefore, &movement.StockAfter, &movement.ReferenceID,
			&movement.Note, &movement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movement.Type = domain.MovementType(movementType)
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}

	return movements, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
