package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/payout-core/notification-scheduler/domain/entities"
	domainerrors "tippy/contexts/payout-core/notification-scheduler/domain/errors"
	"tippy/contexts/payout-core/notification-scheduler/domain/services"
	"tippy/contexts/payout-core/notification-scheduler/ports"
)

const moduleName = "payout-core/notification-scheduler"

type Service struct {
	Intents  ports.IntentRepository
	Payouts  ports.PendingPayoutsReader
	Policies ports.NotifyPolicyReader
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	// DefaultDaysBefore is the notice lead time for restaurants without a
	// stored policy. Zero falls back to the domain default.
	DefaultDaysBefore int
	Logger            *slog.Logger
}

// RunUpcomingSweep records one upcoming-payout intent per pending payout
// for every restaurant whose notice day is today. Re-running on the same
// day is a no-op thanks to the dedup key.
func (s Service) RunUpcomingSweep(ctx context.Context, today time.Time) (int, error) {
	policies, err := s.Policies.ListNotifyPolicies(ctx)
	if err != nil {
		return 0, err
	}

	dueRestaurants := make(map[string]bool)
	var month string
	for _, policy := range policies {
		days := policy.DaysBefore
		if days <= 0 {
			days = s.DefaultDaysBefore
		}
		m, due := services.UpcomingNoticeDue(today, days)
		if due {
			dueRestaurants[policy.RestaurantID] = true
			month = m
		}
	}
	if len(dueRestaurants) == 0 {
		return 0, nil
	}

	notices, err := s.Payouts.ListPendingForMonth(ctx, month)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, notice := range notices {
		if !dueRestaurants[notice.RestaurantID] {
			continue
		}
		dedupKey := "upcoming|" + notice.PayoutID + "|" + month
		if err := s.record(ctx, entities.IntentPayoutUpcoming, dedupKey, notice); err != nil {
			if errors.Is(err, domainerrors.ErrIntentExists) {
				continue
			}
			return created, err
		}
		created++
	}

	if created > 0 {
		ResolveLogger(s.Logger).Info("upcoming payout notices recorded",
			"event", "upcoming_notices_recorded",
			"module", moduleName,
			"layer", "application",
			"month", month,
			"count", created,
		)
	}
	return created, nil
}

type disbursementEventBody struct {
	PayoutID     string  `json:"payout_id"`
	RestaurantID string  `json:"restaurant_id"`
	Recipient    string  `json:"recipient"`
	RecipientKey string  `json:"recipient_key"`
	Month        string  `json:"month"`
	Amount       float64 `json:"amount"`
}

// HandleDisbursementEvent turns a terminal payout event into exactly one
// notification intent, keyed by the event ID so redeliveries collapse.
func (s Service) HandleDisbursementEvent(ctx context.Context, event ports.EventEnvelope) error {
	var kind entities.IntentKind
	switch event.EventType {
	case "payout.completed":
		kind = entities.IntentPayoutProcessed
	case "payout.failed":
		kind = entities.IntentPayoutFailed
	default:
		// Not ours; the bus fans every payouts topic to this consumer.
		return nil
	}

	var body disbursementEventBody
	if err := json.Unmarshal(event.Data, &body); err != nil {
		return err
	}
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(body.PayoutID) == "" {
		return domainerrors.ErrInvalidIntentInput
	}

	notice := ports.PayoutNotice{
		PayoutID:     body.PayoutID,
		RestaurantID: body.RestaurantID,
		Recipient:    body.Recipient,
		RecipientKey: body.RecipientKey,
		Month:        body.Month,
		Amount:       decimal.NewFromFloat(body.Amount),
	}
	err := s.record(ctx, kind, "event|"+strings.TrimSpace(event.EventID), notice)
	if errors.Is(err, domainerrors.ErrIntentExists) {
		return nil
	}
	if err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("payout notification intent recorded",
		"event", "notification_intent_recorded",
		"module", moduleName,
		"layer", "application",
		"kind", string(kind),
		"payout_id", body.PayoutID,
		"restaurant_id", body.RestaurantID,
	)
	return nil
}

func (s Service) ListIntents(ctx context.Context, restaurantID string, limit int) ([]entities.NotificationIntent, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidIntentInput
	}
	if limit <= 0 {
		limit = 100
	}
	return s.Intents.ListIntentsByRestaurant(ctx, strings.TrimSpace(restaurantID), limit)
}

func (s Service) record(
	ctx context.Context,
	kind entities.IntentKind,
	dedupKey string,
	notice ports.PayoutNotice,
) error {
	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	intent, err := entities.NewNotificationIntent(
		id,
		dedupKey,
		kind,
		notice.RestaurantID,
		notice.Recipient,
		notice.RecipientKey,
		notice.PayoutID,
		notice.Month,
		notice.Amount,
		s.now(),
	)
	if err != nil {
		return err
	}
	return s.Intents.CreateIntent(ctx, intent)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
