package notificationscheduler_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	notificationscheduler "tippy/contexts/payout-core/notification-scheduler"
	"tippy/contexts/payout-core/notification-scheduler/domain/entities"
	"tippy/contexts/payout-core/notification-scheduler/domain/services"
	"tippy/contexts/payout-core/notification-scheduler/ports"
	"tippy/internal/shared/events"
)

func TestUpcomingNoticeDue(t *testing.T) {
	cases := []struct {
		name       string
		today      time.Time
		daysBefore int
		wantMonth  string
		wantDue    bool
	}{
		{
			name:       "three days before july end",
			today:      time.Date(2025, time.July, 28, 9, 0, 0, 0, time.UTC),
			daysBefore: 3,
			wantMonth:  "2025-07",
			wantDue:    true,
		},
		{
			name:       "day before the notice day",
			today:      time.Date(2025, time.July, 27, 9, 0, 0, 0, time.UTC),
			daysBefore: 3,
			wantMonth:  "2025-07",
			wantDue:    false,
		},
		{
			name:       "february non leap",
			today:      time.Date(2025, time.February, 25, 0, 0, 0, 0, time.UTC),
			daysBefore: 3,
			wantMonth:  "2025-02",
			wantDue:    true,
		},
		{
			name:       "zero days falls back to default",
			today:      time.Date(2025, time.July, 28, 0, 0, 0, 0, time.UTC),
			daysBefore: 0,
			wantMonth:  "2025-07",
			wantDue:    true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			month, due := services.UpcomingNoticeDue(tc.today, tc.daysBefore)
			if month != tc.wantMonth || due != tc.wantDue {
				t.Fatalf("got (%s, %v), want (%s, %v)", month, due, tc.wantMonth, tc.wantDue)
			}
		})
	}
}

func TestUpcomingSweepRecordsOneIntentPerPendingPayout(t *testing.T) {
	module := notificationscheduler.NewInMemoryModule(nil)
	module.Store.SetNotifyPolicy("rest-1", 3)
	module.Store.SetNotifyPolicy("rest-2", 5)
	module.Store.AddPendingPayout("2025-07", ports.PayoutNotice{
		PayoutID:     "pay-1",
		RestaurantID: "rest-1",
		Recipient:    "waiter",
		RecipientKey: "waiter-1",
		Month:        "2025-07",
		Amount:       decimal.NewFromInt(1350),
	})
	module.Store.AddPendingPayout("2025-07", ports.PayoutNotice{
		PayoutID:     "pay-2",
		RestaurantID: "rest-1",
		Recipient:    "group",
		RecipientKey: "kitchen",
		Month:        "2025-07",
		Amount:       decimal.NewFromInt(1080),
	})
	// rest-2's notice day is July 26th, not the 28th; its payout stays quiet.
	module.Store.AddPendingPayout("2025-07", ports.PayoutNotice{
		PayoutID:     "pay-3",
		RestaurantID: "rest-2",
		Recipient:    "waiter",
		RecipientKey: "waiter-9",
		Month:        "2025-07",
		Amount:       decimal.NewFromInt(500),
	})

	today := time.Date(2025, time.July, 28, 8, 0, 0, 0, time.UTC)
	created, err := module.Service.RunUpcomingSweep(context.Background(), today)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 intents for rest-1, got %d", created)
	}

	// Same-day rerun is a no-op.
	again, err := module.Service.RunUpcomingSweep(context.Background(), today)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again != 0 {
		t.Fatalf("rerun must dedup, created %d", again)
	}

	intents, err := module.Service.ListIntents(context.Background(), "rest-1", 0)
	if err != nil {
		t.Fatalf("list intents: %v", err)
	}
	for _, intent := range intents {
		if intent.Kind != entities.IntentPayoutUpcoming {
			t.Fatalf("expected upcoming kind, got %s", intent.Kind)
		}
	}
}

func TestUpcomingSweepUsesConfiguredDefaultDays(t *testing.T) {
	module := notificationscheduler.NewInMemoryModule(nil)
	module.Service.DefaultDaysBefore = 5
	// No stored lead time for rest-1; the process-wide default decides.
	module.Store.SetNotifyPolicy("rest-1", 0)
	module.Store.AddPendingPayout("2025-07", ports.PayoutNotice{
		PayoutID:     "pay-1",
		RestaurantID: "rest-1",
		Recipient:    "waiter",
		RecipientKey: "waiter-1",
		Month:        "2025-07",
		Amount:       decimal.NewFromInt(1350),
	})

	// Five days before July 31st is the 26th; the 28th is too late.
	created, err := module.Service.RunUpcomingSweep(context.Background(),
		time.Date(2025, time.July, 26, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep on notice day: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected the configured default to fire on the 26th, created %d", created)
	}

	other := notificationscheduler.NewInMemoryModule(nil)
	other.Service.DefaultDaysBefore = 5
	other.Store.SetNotifyPolicy("rest-1", 0)
	other.Store.AddPendingPayout("2025-07", ports.PayoutNotice{
		PayoutID:     "pay-1",
		RestaurantID: "rest-1",
		Recipient:    "waiter",
		RecipientKey: "waiter-1",
		Month:        "2025-07",
		Amount:       decimal.NewFromInt(1350),
	})
	created, err = other.Service.RunUpcomingSweep(context.Background(),
		time.Date(2025, time.July, 28, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep off notice day: %v", err)
	}
	if created != 0 {
		t.Fatalf("the built-in three-day rule must not apply, created %d", created)
	}
}

func disbursementEvent(t *testing.T, eventID string, eventType string, payoutID string) events.Envelope {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"payout_id":     payoutID,
		"restaurant_id": "rest-1",
		"recipient":     "waiter",
		"recipient_key": "waiter-1",
		"month":         "2025-07",
		"amount":        1350.0,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return events.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
		SourceService: "payout-engine",
		SchemaVersion: 1,
		PartitionKey:  "rest-1",
		Data:          data,
	}
}

func TestDisbursementEventsBecomeIntents(t *testing.T) {
	module := notificationscheduler.NewInMemoryModule(nil)
	handler := module.EventHandler()

	if err := handler(context.Background(), disbursementEvent(t, "evt-1", "payout.completed", "pay-1")); err != nil {
		t.Fatalf("completed event: %v", err)
	}
	if err := handler(context.Background(), disbursementEvent(t, "evt-2", "payout.failed", "pay-2")); err != nil {
		t.Fatalf("failed event: %v", err)
	}
	// Unrelated event types are ignored, not errors.
	if err := handler(context.Background(), disbursementEvent(t, "evt-3", "tip.settled", "pay-3")); err != nil {
		t.Fatalf("foreign event must be ignored: %v", err)
	}

	intents := module.Store.Intents()
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	kinds := map[entities.IntentKind]bool{}
	for _, intent := range intents {
		kinds[intent.Kind] = true
	}
	if !kinds[entities.IntentPayoutProcessed] || !kinds[entities.IntentPayoutFailed] {
		t.Fatalf("expected processed and failed intents, got %v", kinds)
	}
}

func TestDisbursementEventRedeliveryCollapses(t *testing.T) {
	module := notificationscheduler.NewInMemoryModule(nil)
	handler := module.EventHandler()

	event := disbursementEvent(t, "evt-dup", "payout.completed", "pay-1")
	for i := 0; i < 3; i++ {
		if err := handler(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := len(module.Store.Intents()); got != 1 {
		t.Fatalf("redeliveries must collapse to one intent, got %d", got)
	}
}
