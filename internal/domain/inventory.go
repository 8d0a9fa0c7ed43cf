package domain

import "time"

// MovementType определяет причину изменения остатка.
type MovementType string

const (
	// MovementTypeSale — списание по завершённой продаже.
	MovementTypeSale MovementType = "SALE"
	// MovementTypeAdjustment — ручная или компенсирующая корректировка.
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	// MovementTypeReturn — возврат от покупателя.
	MovementTypeReturn MovementType = "RETURN"
	// MovementTypePurchase — приход от поставщика.
	MovementTypePurchase MovementType = "PURCHASE"
)

// InventoryRecord хранит текущий остаток по одной книге.
// Инвариант: CurrentStock никогда не становится отрицательным, и каждое
// изменение сопровождается ровно одной записью StockMovement.
type InventoryRecord struct {
	BookID       string
	CurrentStock int32
	MinStock     int32
	MaxStock     int32
	UpdatedAt    time.Time
}

// BelowMin сообщает, опустился ли остаток ниже минимального порога.
func (r *InventoryRecord) BelowMin() bool {
	return r.CurrentStock < r.MinStock
}

// StockMovement — неизменяемая запись одного изменения остатка.
// Записи только добавляются, никогда не обновляются и не удаляются.
type StockMovement struct {
	ID string
	// BookID — книга, по которой произошло движение.
	BookID string
	// Type — причина движения.
	Type MovementType
	// QuantityDelta — знаковое изменение остатка.
	QuantityDelta int32
	// StockBefore и StockAfter фиксируют снимок остатка вокруг движения.
	StockBefore int32
	StockAfter  int32
	// ReferenceID связывает движение с источником (ID продажи).
	ReferenceID string
	Note        string
	CreatedAt   time.Time
}
