package domain

import "time"

// AuditEntityType — явная статическая привязка операции к типу
// сущности. Заменяет вывод типа из URL-строки в исходной системе:
// тип передаётся в месте вызова, а не угадывается по маршруту.
type AuditEntityType string

const (
	AuditEntitySale      AuditEntityType = "sale"
	AuditEntityInventory AuditEntityType = "inventory"
	AuditEntityAnalytics AuditEntityType = "analytics"
)

// AuditRecord — запись журнала аудита одной операции.
type AuditRecord struct {
	ID         string
	EntityType AuditEntityType
	EntityID   string
	Operation  string
	Actor      string
	Detail     string
	CreatedAt  time.Time
}

// AuditRepository хранит append-only журнал аудита.
type AuditRepository interface {
	Append(record AuditRecord) error
	ListBetween(from, to time.Time) ([]AuditRecord, error)
}
