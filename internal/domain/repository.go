package domain

import "time"

// SaleRepository описывает требования к хранилищу продаж.
type SaleRepository interface {
	// Create сохраняет новую продажу вместе с позициями в одной атомарной
	// операции: либо все позиции, либо ничего.
	Create(sale Sale) error
	// Get возвращает продажу по идентификатору или ErrSaleNotFound.
	Get(id string) (Sale, error)
	// Save применяет обновления к продаже с учётом optimistic locking.
	Save(sale Sale) error
	// ListCompletedBetween возвращает завершённые продажи за период
	// (для отчётного слоя).
	ListCompletedBetween(from, to time.Time) ([]Sale, error)
	// DailySales возвращает дневной ряд проданных единиц книги за период.
	DailySales(bookID string, from, to time.Time) ([]DailySales, error)
}

// InventoryRepository описывает требования к хранилищу остатков и движений.
type InventoryRepository interface {
	// Get возвращает запись остатка или ErrInventoryNotFound.
	Get(bookID string) (InventoryRecord, error)
	// Put создаёт или перезаписывает запись остатка (seed/администрирование).
	Put(record InventoryRecord) error
	// ApplyDelta атомарно изменяет остаток и добавляет ровно одно движение
	// со снимком before/after. Остаток не может стать отрицательным:
	// дельта усечётся, а фактическое изменение отразится в движении.
	ApplyDelta(bookID string, delta int32, movementType MovementType, referenceID, note string) (StockMovement, error)
	// MovementsByReference возвращает движения, связанные с источником
	// (ID продажи), в порядке добавления.
	MovementsByReference(referenceID string) ([]StockMovement, error)
	// ListMovements возвращает последние движения книги, не более limit (если >0).
	ListMovements(bookID string, limit int) ([]StockMovement, error)
	// List возвращает все записи остатков.
	List() ([]InventoryRecord, error)
	// ListBelowMin возвращает записи с остатком ниже минимального порога.
	ListBelowMin() ([]InventoryRecord, error)
}

// AnalyticsRepository описывает требования к хранилищу аналитики книг.
type AnalyticsRepository interface {
	// Get возвращает аналитику книги или ErrAnalyticsNotFound.
	Get(bookID string) (BookAnalytics, error)
	// Save создаёт или перезаписывает аналитику книги целиком.
	Save(analytics BookAnalytics) error
	// List возвращает аналитику всех книг.
	List() ([]BookAnalytics, error)
}
