package memory

import (
	"testing"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	t.Parallel()

	repo := NewOutboxRepository()
	for _, eventType := range []string{"sale.created", "sale.completed", "sale.cancelled"} {
		if _, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: "sale",
			AggregateID:   "sale-1",
			EventType:     eventType,
			Payload:       []byte(`{}`),
		}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	// Порядок постановки сохраняется.
	if pending[0].EventType != "sale.created" || pending[2].EventType != "sale.cancelled" {
		t.Fatalf("pull must preserve enqueue order, got %+v", pending)
	}
	for _, msg := range pending {
		if msg.ID == "" {
			t.Fatal("enqueue must assign an ID")
		}
	}
}

func TestOutboxRepository_MarkSentAndStats(t *testing.T) {
	t.Parallel()

	repo := NewOutboxRepository()
	first, err := repo.Enqueue(domain.OutboxMessage{EventType: "sale.created"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := repo.Enqueue(domain.OutboxMessage{EventType: "sale.completed"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending after mark sent, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("oldest pending timestamp must be set")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "sale.completed" {
		t.Fatalf("sent message must not be pulled again, got %+v", pending)
	}
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	t.Parallel()

	repo := NewOutboxRepository()
	msg, err := repo.Enqueue(domain.OutboxMessage{EventType: "sale.created"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := repo.MarkFailed(msg.ID); err != nil {
		t.Fatalf("mark failed returned error: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("failed message must leave the pending set, got %+v", pending)
	}

	if err := repo.MarkSent("missing"); err == nil {
		t.Fatal("mark sent for unknown id must fail")
	}
}
