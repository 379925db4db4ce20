package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
)

type TargetKind string

const (
	TargetWaiter     TargetKind = "waiter"
	TargetRestaurant TargetKind = "restaurant"
)

type PaymentRail string

const (
	RailMobileMoney PaymentRail = "mobile_money"
	RailCard        PaymentRail = "card"
)

type TipStatus string

const (
	TipStatusPending    TipStatus = "pending"
	TipStatusProcessing TipStatus = "processing"
	TipStatusCompleted  TipStatus = "completed"
	TipStatusFailed     TipStatus = "failed"
	TipStatusCancelled  TipStatus = "cancelled"
	TipStatusTimeout    TipStatus = "timeout"
)

// Terminal reports whether the status can never change again.
func (s TipStatus) Terminal() bool {
	switch s {
	case TipStatusCompleted, TipStatusFailed, TipStatusCancelled, TipStatusTimeout:
		return true
	default:
		return false
	}
}

// Tip is a single gratuity instance, owned exclusively by its restaurant
// tenant. Commission and net on a completed tip reflect the restaurant's
// commission rate at settlement time, not at intake.
type Tip struct {
	ID            string
	RestaurantID  string
	WaiterID      *string
	TableID       *string
	Gross         decimal.Decimal
	Commission    decimal.Decimal
	Net           decimal.Decimal
	Target        TargetKind
	Rail          PaymentRail
	Status        TipStatus
	CorrelationID string
	ReceiptID     string
	FailureReason string
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewTip(
	id string,
	restaurantID string,
	waiterID *string,
	tableID *string,
	gross decimal.Decimal,
	target TargetKind,
	rail PaymentRail,
	correlationID string,
	createdAt time.Time,
) (Tip, error) {
	if strings.TrimSpace(id) == "" ||
		strings.TrimSpace(restaurantID) == "" ||
		strings.TrimSpace(correlationID) == "" {
		return Tip{}, domainerrors.ErrInvalidTipInput
	}
	if !gross.IsPositive() {
		return Tip{}, domainerrors.ErrInvalidTipInput
	}
	switch target {
	case TargetWaiter:
		if waiterID == nil || strings.TrimSpace(*waiterID) == "" {
			return Tip{}, domainerrors.ErrInvalidTipInput
		}
	case TargetRestaurant:
	default:
		return Tip{}, domainerrors.ErrInvalidTipInput
	}
	if rail != RailMobileMoney && rail != RailCard {
		return Tip{}, domainerrors.ErrInvalidTipInput
	}

	return Tip{
		ID:            strings.TrimSpace(id),
		RestaurantID:  strings.TrimSpace(restaurantID),
		WaiterID:      waiterID,
		TableID:       tableID,
		Gross:         gross.Round(2),
		Target:        target,
		Rail:          rail,
		Status:        TipStatusPending,
		CorrelationID: strings.TrimSpace(correlationID),
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
	}, nil
}

// RestaurantWide reports whether the tip belongs to the whole restaurant
// pool rather than a single waiter.
func (t Tip) RestaurantWide() bool {
	return t.Target == TargetRestaurant
}
