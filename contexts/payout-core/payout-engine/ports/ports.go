package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	"tippy/internal/shared/events"
)

// WaiterMonthTotal is a waiter's settled direct-tip totals for one month.
type WaiterMonthTotal struct {
	WaiterID   string
	TotalTips  decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
	TipCount   int
}

// RestaurantMonthTotal is the restaurant-wide settled tip total for one
// month, the base the group percentages apply to.
type RestaurantMonthTotal struct {
	TotalTips  decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
	TipCount   int
}

// TipTotalsReader aggregates completed tips from the settlement ledger.
// Totals are recomputed from the tips themselves at generation time, so
// a regenerated month always reflects late-arriving settlements.
type TipTotalsReader interface {
	WaiterTotals(ctx context.Context, restaurantID string, from time.Time, to time.Time) ([]WaiterMonthTotal, error)
	RestaurantWideTotal(ctx context.Context, restaurantID string, from time.Time, to time.Time) (RestaurantMonthTotal, error)
}

// GroupShare is a distribution group's current percentage, read from the
// distribution engine's configuration.
type GroupShare struct {
	Name       string
	Percentage decimal.Decimal
}

type GroupConfigReader interface {
	ListGroupShares(ctx context.Context, restaurantID string) ([]GroupShare, error)
}

// BankAccountInfo is the destination for a group payout. Only verified
// accounts are eligible for disbursement.
type BankAccountInfo struct {
	BankName      string
	AccountName   string
	AccountNumber string
	Verified      bool
}

type BankAccountReader interface {
	GroupBankAccount(ctx context.Context, restaurantID string, groupName string) (BankAccountInfo, error)
}

// WaiterDirectory resolves the mobile money destination for a waiter.
type WaiterDirectory interface {
	WaiterPhone(ctx context.Context, restaurantID string, waiterID string) (string, error)
}

type PayoutRepository interface {
	// CreatePayout inserts a pending obligation. Returns ErrPayoutExists
	// when a payout for the same (restaurant, month, recipient) already
	// exists.
	CreatePayout(ctx context.Context, payout entities.Payout) error
	GetPayout(ctx context.Context, payoutID string) (entities.Payout, error)
	GetPayoutByConversationID(ctx context.Context, conversationID string) (entities.Payout, error)
	CountPayoutsForMonth(ctx context.Context, restaurantID string, month string) (int64, error)
	ListPayouts(ctx context.Context, restaurantID string, month string) ([]entities.Payout, error)
	// ListPendingPayouts with an empty restaurantID spans every
	// restaurant, oldest first.
	ListPendingPayouts(ctx context.Context, restaurantID string, limit int) ([]entities.Payout, error)
	ListPayoutsByIDs(ctx context.Context, payoutIDs []string) ([]entities.Payout, error)
	// ClaimPayout atomically moves a pending payout into processing before
	// any rail call is made. Returns false without error when the payout
	// was not pending, so overlapping batch runs skip instead of
	// double-submitting.
	ClaimPayout(ctx context.Context, payoutID string, now time.Time) (bool, error)
	// RecordAcceptance stores the rail's conversation ID on a processing
	// payout once the rail has accepted the submission.
	RecordAcceptance(ctx context.Context, payoutID string, conversationID string, now time.Time) error
	// CompletePayout moves processing to completed; false when the payout
	// was already terminal (duplicate or late callback).
	CompletePayout(ctx context.Context, payoutID string, transactionRef string, processedAt time.Time) (bool, error)
	// FailPayout moves processing to failed with a diagnostic; false when
	// already terminal.
	FailPayout(ctx context.Context, payoutID string, failureCode string, failureReason string, now time.Time) (bool, error)
	// ResetPayout moves failed back to pending for an operator retry;
	// false when the payout was not failed.
	ResetPayout(ctx context.Context, payoutID string, now time.Time) (bool, error)
	// ListStaleProcessing returns payouts stuck in processing since before
	// the cutoff, for the reconciliation sweep.
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]entities.Payout, error)
}

// RailAcceptance is the synchronous answer from a disbursement rail.
// Accepted submissions finish later via callback, correlated by
// ConversationID.
type RailAcceptance struct {
	Accepted       bool
	ConversationID string
	FailureCode    string
	FailureReason  string
}

type MobileMoneySubmission struct {
	Phone     string
	Amount    decimal.Decimal
	Reference string
	Remarks   string
}

// MobileMoneyRail submits bulk payments to waiters. Amounts must already
// be rounded to whole currency units.
type MobileMoneyRail interface {
	SubmitBulkPayment(ctx context.Context, submission MobileMoneySubmission) (RailAcceptance, error)
}

type BankTransferSubmission struct {
	Account   BankAccountInfo
	Amount    decimal.Decimal
	Reference string
	Narrative string
}

type BankTransferRail interface {
	SubmitTransfer(ctx context.Context, submission BankTransferSubmission) (RailAcceptance, error)
}

// RailStatus is the answer to an out-of-band status query, used by the
// stale-payout reconciler when a callback never arrived.
type RailStatus struct {
	Final          bool
	Succeeded      bool
	TransactionRef string
	FailureCode    string
	FailureReason  string
}

type RailStatusQuery interface {
	QueryStatus(ctx context.Context, conversationID string) (RailStatus, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
