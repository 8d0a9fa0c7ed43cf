package domain

import (
	"math"
	"time"
)

// SaleStatus описывает жизненный цикл продажи.
type SaleStatus string

const (
	// SaleStatusPending — продажа создана и ожидает завершения или отмены.
	SaleStatusPending SaleStatus = "pending"
	// SaleStatusCompleted — продажа завершена и оплачена; терминальный статус.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusCancelled — продажа отменена; терминальный статус.
	SaleStatusCancelled SaleStatus = "cancelled"
)

// TaxRate — фиксированная ставка налога (19%), не настраивается per-call.
const TaxRate = 0.19

// SaleItem представляет одну позицию продажи.
type SaleItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// BookID — внешний идентификатор книги в каталоге.
	BookID string
	// Qty — количество единиц.
	Qty int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах (центах).
	UnitPriceMinor int64
	// DiscountMinor — скидка на позицию в центах.
	DiscountMinor int64
	// SubtotalMinor — зафиксированный подытог позиции: qty*price − discount.
	SubtotalMinor int64
	// CreatedAt фиксирует момент добавления позиции.
	CreatedAt time.Time
}

// Sale агрегирует состояние продажи и её позиции. Денежные поля
// вычисляются один раз при создании и после сохранения не мутируют;
// меняются только статусные поля.
type Sale struct {
	ID            string
	SellerID      string
	Status        SaleStatus
	Items         []SaleItem
	SubtotalMinor int64
	DiscountMinor int64
	TaxMinor      int64
	TotalMinor    int64
	PaymentMethod string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// IsTerminal сообщает, достигла ли продажа конечного статуса.
func (s *Sale) IsTerminal() bool {
	return s.Status == SaleStatusCompleted || s.Status == SaleStatusCancelled
}

// CanTransition проверяет допустимость перехода статуса.
// Единственные валидные переходы: pending → completed и pending → cancelled.
func (s *Sale) CanTransition(to SaleStatus) bool {
	if s.Status != SaleStatusPending {
		return false
	}
	return to == SaleStatusCompleted || to == SaleStatusCancelled
}

// ComputeTotals пересчитывает подытог, налог и итог по позициям.
// Вызывается только при создании продажи.
func (s *Sale) ComputeTotals() {
	var subtotal int64
	for i := range s.Items {
		item := &s.Items[i]
		item.SubtotalMinor = int64(item.Qty)*item.UnitPriceMinor - item.DiscountMinor
		subtotal += item.SubtotalMinor
	}
	s.SubtotalMinor = subtotal
	s.TaxMinor = TaxAmountMinor(subtotal - s.DiscountMinor)
	s.TotalMinor = subtotal - s.DiscountMinor + s.TaxMinor
}

// TaxAmountMinor возвращает налог в центах от налогооблагаемой базы.
func TaxAmountMinor(taxableMinor int64) int64 {
	return int64(math.Round(float64(taxableMinor) * TaxRate))
}

// ValidateInvariants проверяет базовые инварианты продажи и возвращает список замечаний.
func (s *Sale) ValidateInvariants() []error {
	var errs []error

	if len(s.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	var calc int64
	for _, item := range s.Items {
		if item.BookID == "" {
			errs = append(errs, ErrItemBookRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.DiscountMinor < 0 {
			errs = append(errs, ErrItemDiscountInvalid)
		}
		calc += item.SubtotalMinor
	}
	if calc != s.SubtotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if s.DiscountMinor < 0 {
		errs = append(errs, ErrDiscountInvalid)
	}
	if s.TotalMinor != s.SubtotalMinor-s.DiscountMinor+s.TaxMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
