package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// ProductCatalog — PostgreSQL-реализация read-only каталога книг.
type ProductCatalog struct {
	db *sql.DB
}

// NewProductCatalog создаёт PostgreSQL-реализацию ProductCatalog.
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{db: store.DB()}
}

// GetBatch возвращает активные книги по идентификаторам одной выборкой.
// Отсутствующие и неактивные идентификаторы в результат не попадают.
func (c *ProductCatalog) GetBatch(ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, price_minor, active
		FROM products
		WHERE id = ANY($1)
		  AND active
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Title, &product.PriceMinor, &product.Active); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return result, nil
}

// Put создаёт или обновляет книгу (seed/администрирование).
func (c *ProductCatalog) Put(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, title, price_minor, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    price_minor = EXCLUDED.price_minor,
		    active = EXCLUDED.active,
		    updated_at = NOW()
	`, product.ID, product.Title, product.PriceMinor, product.Active)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)
