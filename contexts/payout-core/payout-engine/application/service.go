package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/ports"
)

const moduleName = "payout-core/payout-engine"

type Service struct {
	Payouts      ports.PayoutRepository
	Tips         ports.TipTotalsReader
	Groups       ports.GroupConfigReader
	Accounts     ports.BankAccountReader
	Waiters      ports.WaiterDirectory
	MobileMoney  ports.MobileMoneyRail
	BankTransfer ports.BankTransferRail
	RailStatus   ports.RailStatusQuery
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator

	// MinimumAmount is the monthly net floor below which no waiter payout
	// is generated. Zero means the domain default.
	MinimumAmount decimal.Decimal
	// BatchParallelism bounds concurrent rail submissions per batch run.
	BatchParallelism int
	Logger           *slog.Logger
}

func (s Service) GetPayout(ctx context.Context, payoutID string) (entities.Payout, error) {
	if strings.TrimSpace(payoutID) == "" {
		return entities.Payout{}, domainerrors.ErrInvalidPayoutInput
	}
	return s.Payouts.GetPayout(ctx, strings.TrimSpace(payoutID))
}

func (s Service) ListPayouts(ctx context.Context, restaurantID string, month string) ([]entities.Payout, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidPayoutInput
	}
	month = strings.TrimSpace(month)
	if month != "" {
		if _, _, err := entities.ParseMonth(month); err != nil {
			return nil, err
		}
	}
	return s.Payouts.ListPayouts(ctx, strings.TrimSpace(restaurantID), month)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
