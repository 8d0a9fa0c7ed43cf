package domain

import (
	"fmt"
	"time"
)

// ProductCatalog описывает read-only доступ к каталогу книг.
// Каталог — внешний коллаборатор; пайплайн расчётов его не мутирует.
type ProductCatalog interface {
	// GetBatch возвращает книги по идентификаторам одной выборкой.
	// Отсутствующие идентификаторы в результат не попадают.
	GetBatch(ids []string) (map[string]Product, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// ProcessedEventRepository хранит dedupe-ключи применённых событий.
// Консюмеры проверяют ключ до мутации, что делает повторную доставку
// at-least-once безопасной.
type ProcessedEventRepository interface {
	// MarkProcessed фиксирует ключ; возвращает ErrEventAlreadyProcessed,
	// если событие уже применялось.
	MarkProcessed(key string, ttlAt time.Time) error
	// Seen сообщает, применялось ли событие с таким ключом.
	Seen(key string) (bool, error)
	// DeleteExpired удаляет до limit ключей с истёкшим TTL.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// DedupeKey строит ключ идемпотентности: тип события + продажа +
// книга, с префиксом консюмера, чтобы консюмеры могли разделять одно
// хранилище ключей, не мешая друг другу.
func DedupeKey(consumer, eventType, saleID, bookID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", consumer, eventType, saleID, bookID)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
