package workers_test

import (
	"context"
	"testing"
	"time"

	"tippy/contexts/payout-core/payout-engine/adapters/memory"
	"tippy/contexts/payout-core/payout-engine/application/workers"
	"tippy/contexts/payout-core/payout-engine/ports"
)

type capturingPublisher struct {
	topics []string
	events []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	for i, eventType := range []string{"payout.completed", "payout.failed"} {
		err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
			EventID:       "evt-" + eventType,
			EventType:     eventType,
			OccurredAt:    base.Add(time.Duration(i) * time.Second),
			SourceService: "payout-engine",
			SchemaVersion: 1,
			PartitionKey:  "rest-1",
			Data:          []byte(`{"payout_id":"pay-1"}`),
		})
		if err != nil {
			t.Fatalf("append outbox: %v", err)
		}
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.events))
	}
	// Events route to the topic named after their type, oldest first.
	if publisher.topics[0] != "payout.completed" || publisher.topics[1] != "payout.failed" {
		t.Fatalf("unexpected topics %v", publisher.topics)
	}
	if store.PendingOutboxCount() != 0 {
		t.Fatalf("published rows must be marked, %d still pending", store.PendingOutboxCount())
	}

	// A second cycle finds nothing to do.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("relay republished already-published rows")
	}
}
