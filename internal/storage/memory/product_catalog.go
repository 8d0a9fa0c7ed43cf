package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// productCatalogInMemory — заглушка каталога для локального запуска и
// тестов. В production каталог — внешний сервис.
type productCatalogInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductCatalog создаёт in-memory каталог с начальным набором книг.
func NewProductCatalog(products ...domain.Product) *productCatalogInMemory {
	c := &productCatalogInMemory{items: make(map[string]domain.Product)}
	for _, p := range products {
		c.items[p.ID] = p
	}
	return c
}

// Put добавляет или заменяет книгу в каталоге.
func (c *productCatalogInMemory) Put(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[product.ID] = product
}

// GetBatch возвращает книги по идентификаторам; отсутствующие пропускаются.
func (c *productCatalogInMemory) GetBatch(ids []string) (map[string]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := c.items[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

var _ domain.ProductCatalog = (*productCatalogInMemory)(nil)
