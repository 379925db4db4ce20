package entities

import (
	"time"

	"github.com/shopspring/decimal"

	domainerrors "tippy/contexts/payout-core/notification-scheduler/domain/errors"
)

// IntentKind names the notification template the intent maps to.
type IntentKind string

const (
	IntentPayoutUpcoming  IntentKind = "payout_upcoming"
	IntentPayoutProcessed IntentKind = "payout_processed"
	IntentPayoutFailed    IntentKind = "payout_failed"
)

// NotificationIntent is one owed notification. DedupKey makes recording
// idempotent: the upcoming sweep and the event consumer can both replay
// without producing duplicate intents.
type NotificationIntent struct {
	ID           string
	DedupKey     string
	Kind         IntentKind
	RestaurantID string
	Recipient    string
	RecipientKey string
	PayoutID     string
	Month        string
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

func NewNotificationIntent(
	id string,
	dedupKey string,
	kind IntentKind,
	restaurantID string,
	recipient string,
	recipientKey string,
	payoutID string,
	month string,
	amount decimal.Decimal,
	now time.Time,
) (NotificationIntent, error) {
	if id == "" || dedupKey == "" || restaurantID == "" || payoutID == "" {
		return NotificationIntent{}, domainerrors.ErrInvalidIntentInput
	}
	switch kind {
	case IntentPayoutUpcoming, IntentPayoutProcessed, IntentPayoutFailed:
	default:
		return NotificationIntent{}, domainerrors.ErrInvalidIntentInput
	}
	return NotificationIntent{
		ID:           id,
		DedupKey:     dedupKey,
		Kind:         kind,
		RestaurantID: restaurantID,
		Recipient:    recipient,
		RecipientKey: recipientKey,
		PayoutID:     payoutID,
		Month:        month,
		Amount:       amount,
		CreatedAt:    now,
	}, nil
}
