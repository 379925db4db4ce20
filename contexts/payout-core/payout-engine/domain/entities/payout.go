package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
)

// RecipientKind identifies who a payout obligation is owed to.
type RecipientKind string

const (
	RecipientWaiter RecipientKind = "waiter"
	RecipientGroup  RecipientKind = "group"
)

// PayoutStatus is the disbursement lifecycle of a payout obligation.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Terminal reports whether the status admits no further transitions
// from disbursement callbacks. A failed payout is terminal for
// callbacks but may be reset to pending by an operator retry.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutCompleted || s == PayoutFailed
}

// Payout is a monthly obligation owed to a single recipient: either a
// waiter (paid by bulk mobile money) or a distribution group (paid by
// bank transfer to the group's registered account).
type Payout struct {
	ID           string
	RestaurantID string
	Recipient    RecipientKind
	WaiterID     string
	GroupName    string
	Month        string
	TotalTips    decimal.Decimal
	Commission   decimal.Decimal
	Amount       decimal.Decimal
	TipCount     int
	Status       PayoutStatus

	// ConversationID correlates the payout with an asynchronous rail
	// submission; it is set when the rail accepts the request.
	ConversationID string
	TransactionRef string
	FailureCode    string
	FailureReason  string

	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipientKey is the identity the monthly uniqueness constraint hangs
// off: waiter ID for waiter payouts, group name for group payouts.
func (p Payout) RecipientKey() string {
	if p.Recipient == RecipientWaiter {
		return p.WaiterID
	}
	return p.GroupName
}

// ParseMonth validates a YYYY-MM month label and returns the half-open
// UTC window [start, end) covering it.
func ParseMonth(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, domainerrors.ErrInvalidMonth
	}
	return start, start.AddDate(0, 1, 0), nil
}

// NewPayout builds a pending payout obligation.
func NewPayout(
	id string,
	restaurantID string,
	recipient RecipientKind,
	recipientKey string,
	month string,
	totalTips decimal.Decimal,
	commission decimal.Decimal,
	amount decimal.Decimal,
	tipCount int,
	now time.Time,
) (Payout, error) {
	if id == "" || restaurantID == "" || recipientKey == "" {
		return Payout{}, domainerrors.ErrInvalidPayoutInput
	}
	if recipient != RecipientWaiter && recipient != RecipientGroup {
		return Payout{}, domainerrors.ErrInvalidPayoutInput
	}
	if _, _, err := ParseMonth(month); err != nil {
		return Payout{}, err
	}
	if !amount.IsPositive() {
		return Payout{}, domainerrors.ErrInvalidPayoutInput
	}
	payout := Payout{
		ID:           id,
		RestaurantID: restaurantID,
		Recipient:    recipient,
		Month:        month,
		TotalTips:    totalTips,
		Commission:   commission,
		Amount:       amount,
		TipCount:     tipCount,
		Status:       PayoutPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if recipient == RecipientWaiter {
		payout.WaiterID = recipientKey
	} else {
		payout.GroupName = recipientKey
	}
	return payout, nil
}
