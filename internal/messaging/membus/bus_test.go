package membus

import (
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

func TestBus_PublishFansOut(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var first, second []string

	bus.Subscribe(func(msg domain.OutboxMessage) error {
		first = append(first, msg.EventType)
		return nil
	})
	bus.Subscribe(func(msg domain.OutboxMessage) error {
		second = append(second, msg.EventType)
		return nil
	})

	if err := bus.Publish(domain.OutboxMessage{AggregateID: "sale-1", EventType: "sale.completed"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("all subscribers must receive the message: %v %v", first, second)
	}
}

func TestBus_HandlerErrorSurfacesButDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	delivered := false
	boom := errors.New("boom")

	bus.Subscribe(func(domain.OutboxMessage) error {
		return boom
	})
	bus.Subscribe(func(domain.OutboxMessage) error {
		delivered = true
		return nil
	})

	// Ошибка возвращается публикующему: outbox worker должен увидеть
	// неудачную доставку и повторить её своим retry-механизмом.
	err := bus.Publish(domain.OutboxMessage{AggregateID: "sale-1", EventType: "sale.completed"})
	if !errors.Is(err, boom) {
		t.Fatalf("handler error must surface to the publisher, got %v", err)
	}
	if !delivered {
		t.Fatal("remaining subscribers must still receive the message")
	}
}

func TestBus_SerializesPerAggregate(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)

	var mu sync.Mutex
	inFlight := make(map[string]int)
	maxInFlight := make(map[string]int)

	bus.Subscribe(func(msg domain.OutboxMessage) error {
		mu.Lock()
		inFlight[msg.AggregateID]++
		if inFlight[msg.AggregateID] > maxInFlight[msg.AggregateID] {
			maxInFlight[msg.AggregateID] = inFlight[msg.AggregateID]
		}
		mu.Unlock()

		mu.Lock()
		inFlight[msg.AggregateID]--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		saleID := "sale-a"
		if i%2 == 0 {
			saleID = "sale-b"
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = bus.Publish(domain.OutboxMessage{AggregateID: id, EventType: "sale.completed"})
		}(saleID)
	}
	wg.Wait()

	for id, peak := range maxInFlight {
		if peak > 1 {
			t.Fatalf("deliveries for %s must be serialized, peak concurrency %d", id, peak)
		}
	}
}
