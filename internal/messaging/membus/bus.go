package membus

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// Handler обрабатывает одно опубликованное сообщение. Обработчики
// обязаны быть идемпотентными: Bus доставляет at-least-once.
type Handler func(msg domain.OutboxMessage) error

// Bus — in-process реализация шины событий для локального запуска и
// тестов. Сообщения доставляются всем подписчикам синхронно; доставка
// одного aggregate ID сериализуется, разные ключи могут обрабатываться
// параллельно.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	keyLocks sync.Map // aggregateID -> *sync.Mutex
	logger   *log.Entry
}

// NewBus создаёт пустую шину.
func NewBus(logger *log.Entry) *Bus {
	if logger == nil {
		logger = log.WithField("component", "membus")
	}
	return &Bus{logger: logger}
}

// Subscribe регистрирует обработчика. Подписки выполняются при старте
// процесса, до первой публикации.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish доставляет сообщение всем подписчикам. Ошибка обработчика
// не прерывает доставку остальным, но возвращается вызывающему:
// outbox worker повторяет публикацию целиком, а идемпотентные
// консюмеры отбрасывают уже применённые части.
func (b *Bus) Publish(msg domain.OutboxMessage) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	unlock := b.lockKey(msg.AggregateID)
	defer unlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(msg); err != nil {
			b.logger.WithError(err).WithFields(log.Fields{
				"aggregate_id": msg.AggregateID,
				"event_type":   msg.EventType,
			}).Warn("membus handler failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// lockKey сериализует доставку в пределах одного aggregate ID.
func (b *Bus) lockKey(key string) func() {
	if key == "" {
		return func() {}
	}
	val, _ := b.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := val.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

var _ domain.OutboxPublisher = (*Bus)(nil)
