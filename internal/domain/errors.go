package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствия хотя бы одной позиции в продаже.
	ErrItemsRequired = errors.New("sale must contain at least one item")
	// Ошибка отсутствующего идентификатора книги в позиции.
	ErrItemBookRequired = errors.New("item book_id is required")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной скидки позиции.
	ErrItemDiscountInvalid = errors.New("item discount must be non-negative")
	// Ошибка отрицательной скидки на продажу.
	ErrDiscountInvalid = errors.New("sale discount must be non-negative")
	// Ошибка несоответствия суммы продажи и сумм позиций.
	ErrAmountMismatch = errors.New("sale amount does not match items sum")
	// Ошибка отсутствующего способа оплаты при завершении продажи.
	ErrPaymentMethodRequired = errors.New("payment method is required to complete a sale")
	// ErrSaleNotFound возвращается, если продажа не найдена в репозитории.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrSaleVersionConflict = errors.New("sale version conflict")
	// ErrSaleAlreadyFinal — попытка сменить статус терминальной продажи.
	ErrSaleAlreadyFinal = errors.New("sale is already in a terminal status")
	// ErrInvalidStatusTransition — недопустимый целевой статус.
	ErrInvalidStatusTransition = errors.New("invalid sale status transition")
	// ErrProductNotFound — неизвестная книга в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInventoryNotFound — нет inventory-записи по книге.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrAnalyticsNotFound — нет аналитики по книге.
	ErrAnalyticsNotFound = errors.New("book analytics not found")
	// ErrEventAlreadyProcessed — событие с таким dedupe-ключом уже применено.
	ErrEventAlreadyProcessed = errors.New("event already processed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// FieldError описывает одну ошибку валидации входных данных.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError — структурированный результат проверки входа.
// Заменяет decorator/DTO-цепочки исходной системы: валидация выполняется
// явной функцией до построения доменных объектов.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError строит ошибку валидации из списка ошибок полей.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// NewInsufficientStockError формирует ошибку нехватки остатка,
// называя книгу и величину дефицита.
func NewInsufficientStockError(bookID string, available, requested int32) *ValidationError {
	return NewValidationError(FieldError{
		Field:   "items",
		Message: fmt.Sprintf("insufficient stock for book %s: available %d, requested %d", bookID, available, requested),
	})
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrSaleVersionConflict)
}
