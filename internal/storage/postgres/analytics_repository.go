package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

type analyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository создаёт PostgreSQL-реализацию AnalyticsRepository.
func NewAnalyticsRepository(store *Store) domain.AnalyticsRepository {
	return &analyticsRepository{db: store.DB()}
}

func (r *analyticsRepository) Get(bookID string) (domain.BookAnalytics, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	analytics, err := scanAnalytics(r.db.QueryRowContext(ctx, `
		SELECT book_id, total_units_sold, total_revenue_minor,
		       sales_last_7_days, sales_last_30_days, sales_last_90_days,
		       first_sale_date, last_sale_date, rotation_rate, days_to_sell, updated_at
		FROM book_analytics
		WHERE book_id = $1
	`, bookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookAnalytics{}, domain.ErrAnalyticsNotFound
		}
		return domain.BookAnalytics{}, err
	}

	return analytics, nil
}

func (r *analyticsRepository) Save(analytics domain.BookAnalytics) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if analytics.UpdatedAt.IsZero() {
		analytics.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO book_analytics (
			book_id, total_units_sold, total_revenue_minor,
			sales_last_7_days, sales_last_30_days, sales_last_90_days,
			first_sale_date, last_sale_date, rotation_rate, days_to_sell, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (book_id) DO UPDATE
		SET total_units_sold = EXCLUDED.total_units_sold,
		    total_revenue_minor = EXCLUDED.total_revenue_minor,
		    sales_last_7_days = EXCLUDED.sales_last_7_days,
		    sales_last_30_days = EXCLUDED.sales_last_30_days,
		    sales_last_90_days = EXCLUDED.sales_last_90_days,
		    first_sale_date = EXCLUDED.first_sale_date,
		    last_sale_date = EXCLUDED.last_sale_date,
		    rotation_rate = EXCLUDED.rotation_rate,
		    days_to_sell = EXCLUDED.days_to_sell,
		    updated_at = EXCLUDED.updated_at
	`,
		analytics.BookID, analytics.TotalUnitsSold, analytics.TotalRevenueMinor,
		analytics.SalesLast7Days, analytics.SalesLast30Days, analytics.SalesLast90Days,
		analytics.FirstSaleDate, analytics.LastSaleDate,
		analytics.RotationRate, analytics.DaysToSell, analytics.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert book analytics: %w", err)
	}

	return nil
}

func (r *analyticsRepository) List() ([]domain.BookAnalytics, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT book_id, total_units_sold, total_revenue_minor,
		       sales_last_7_days, sales_last_30_days, sales_last_90_days,
		       first_sale_date, last_sale_date, rotation_rate, days_to_sell, updated_at
		FROM book_analytics
		ORDER BY book_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list book analytics: %w", err)
	}
	defer rows.Close()

	result := make([]domain.BookAnalytics, 0)
	for rows.Next() {
		analytics, err := scanAnalytics(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, analytics)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics rows: %w", err)
	}

	return result, nil
}

func scanAnalytics(row rowScanner) (domain.BookAnalytics, error) {
	var (
		analytics domain.BookAnalytics
		firstSale sql.NullTime
		lastSale  sql.NullTime
	)
	if err := row.Scan(
		&analytics.BookID, &analytics.TotalUnitsSold, &analytics.TotalRevenueMinor,
		&analytics.SalesLast7Days, &analytics.SalesLast30Days, &analytics.SalesLast90Days,
		&firstSale, &lastSale, &analytics.RotationRate, &analytics.DaysToSell, &analytics.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookAnalytics{}, err
		}
		return domain.BookAnalytics{}, fmt.Errorf("scan analytics row: %w", err)
	}
	if firstSale.Valid {
		t := firstSale.Time.UTC()
		analytics.FirstSaleDate = &t
	}
	if lastSale.Valid {
		t := lastSale.Time.UTC()
		analytics.LastSaleDate = &t
	}
	return analytics, nil
}

var _ domain.AnalyticsRepository = (*analyticsRepository)(nil)
