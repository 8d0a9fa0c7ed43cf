package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию SaleRepository.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{db: store.DB()}
}

// Create сохраняет продажу вместе с позициями в одной транзакции.
func (r *saleRepository) Create(sale domain.Sale) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, seller_id, status, subtotal_minor, discount_minor, tax_minor,
			total_minor, payment_method, version, created_at, updated_at,
			completed_at, cancelled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		sale.ID, sale.SellerID, string(sale.Status),
		sale.SubtotalMinor, sale.DiscountMinor, sale.TaxMinor, sale.TotalMinor,
		sale.PaymentMethod, sale.Version, sale.CreatedAt, sale.UpdatedAt,
		sale.CompletedAt, sale.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSaleVersionConflict
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, item := range sale.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, book_id, qty, unit_price_minor, discount_minor,
				subtotal_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, sale.ID, item.BookID, item.Qty,
			item.UnitPriceMinor, item.DiscountMinor, item.SubtotalMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create sale: %w", err)
	}

	return nil
}

func (r *saleRepository) Get(id string) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	sale, err := r.getTx(ctx, r.db, id)
	if err != nil {
		return domain.Sale{}, err
	}

	items, err := r.loadItems(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Items = items

	return sale, nil
}

// Save применяет обновления статусных полей с optimistic locking.
func (r *saleRepository) Save(sale domain.Sale) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $1,
		    payment_method = $2,
		    version = version + 1,
		    updated_at = $3,
		    completed_at = $4,
		    cancelled_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(sale.Status),
		sale.PaymentMethod,
		sale.UpdatedAt,
		sale.CompletedAt,
		sale.CancelledAt,
		sale.ID,
		sale.Version,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.saleExists(ctx, sale.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrSaleNotFound
		}
		return domain.ErrSaleVersionConflict
	}

	return nil
}

func (r *saleRepository) ListCompletedBetween(from, to time.Time) ([]domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, status, subtotal_minor, discount_minor, tax_minor,
		       total_minor, payment_method, version, created_at, updated_at,
		       completed_at, cancelled_at
		FROM sales
		WHERE status = 'completed'
		  AND completed_at >= $1
		  AND completed_at <= $2
		ORDER BY completed_at, id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}

	for i := range sales {
		items, err := r.loadItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}

	return sales, nil
}

// DailySales агрегирует проданные единицы книги по календарным дням
// завершения продажи.
func (r *saleRepository) DailySales(bookID string, from, to time.Time) ([]domain.DailySales, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('day', s.completed_at AT TIME ZONE 'UTC') AS day,
		       SUM(i.qty)::BIGINT AS units
		FROM sales s
		JOIN sale_items i ON i.sale_id = s.id
		WHERE s.status = 'completed'
		  AND i.book_id = $1
		  AND s.completed_at >= $2
		  AND s.completed_at <= $3
		GROUP BY day
		ORDER BY day
	`, bookID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily sales: %w", err)
	}
	defer rows.Close()

	series := make([]domain.DailySales, 0)
	for rows.Next() {
		point := domain.DailySales{BookID: bookID}
		if err := rows.Scan(&point.Day, &point.Units); err != nil {
			return nil, fmt.Errorf("scan daily sales row: %w", err)
		}
		point.Day = point.Day.UTC()
		series = append(series, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily sales rows: %w", err)
	}

	return series, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		sale        domain.Sale
		status      string
		completedAt sql.NullTime
		cancelledAt sql.NullTime
	)
	if err := row.Scan(
		&sale.ID, &sale.SellerID, &status,
		&sale.SubtotalMinor, &sale.DiscountMinor, &sale.TaxMinor, &sale.TotalMinor,
		&sale.PaymentMethod, &sale.Version, &sale.CreatedAt, &sale.UpdatedAt,
		&completedAt, &cancelledAt,
	); err != nil {
		return domain.Sale{}, fmt.Errorf("scan sale row: %w", err)
	}
	sale.Status = domain.SaleStatus(status)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		sale.CompletedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		sale.CancelledAt = &t
	}
	return sale, nil
}

func (r *saleRepository) getTx(ctx context.Context, db *sql.DB, id string) (domain.Sale, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, seller_id, status, subtotal_minor, discount_minor, tax_minor,
		       total_minor, payment_method, version, created_at, updated_at,
		       completed_at, cancelled_at
		FROM sales
		WHERE id = $1
	`, id)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, err
	}
	return sale, nil
}

func (r *saleRepository) loadItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, book_id, qty, unit_price_minor, discount_minor, subtotal_minor, created_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY created_at ASC, id ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(
			&item.ID, &item.BookID, &item.Qty,
			&item.UnitPriceMinor, &item.DiscountMinor, &item.SubtotalMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}

	return items, nil
}

func (r *saleRepository) saleExists(ctx context.Context, saleID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM sales WHERE id = $1`, saleID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check sale exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.SaleRepository = (*saleRepository)(nil)
