package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/payout-core/notification-scheduler/domain/entities"
	"tippy/internal/shared/events"
)

type IntentRepository interface {
	// CreateIntent records an intent; ErrIntentExists when the dedup key
	// was already recorded.
	CreateIntent(ctx context.Context, intent entities.NotificationIntent) error
	ListIntentsByRestaurant(ctx context.Context, restaurantID string, limit int) ([]entities.NotificationIntent, error)
}

// PayoutNotice is the slice of a payout the scheduler needs to announce
// it.
type PayoutNotice struct {
	PayoutID     string
	RestaurantID string
	Recipient    string
	RecipientKey string
	Month        string
	Amount       decimal.Decimal
}

// PendingPayoutsReader lists pending payouts for a month across all
// restaurants, read from the payout engine's store.
type PendingPayoutsReader interface {
	ListPendingForMonth(ctx context.Context, month string) ([]PayoutNotice, error)
}

// NotifyPolicy is a restaurant's notice lead time in days before month
// end.
type NotifyPolicy struct {
	RestaurantID string
	DaysBefore   int
}

type NotifyPolicyReader interface {
	ListNotifyPolicies(ctx context.Context) ([]NotifyPolicy, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope
