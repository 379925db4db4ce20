package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/distribution-engine/domain/entities"
)

type GroupInput struct {
	Name       string
	Percentage decimal.Decimal
}

type GroupRepository interface {
	// ReplaceGroups swaps the restaurant's whole group set in one write.
	// Validation already happened; storage only persists.
	ReplaceGroups(ctx context.Context, restaurantID string, groups []entities.DistributionGroup) error
	ListGroups(ctx context.Context, restaurantID string) ([]entities.DistributionGroup, error)
}

type RecordRepository interface {
	// CreateRecord persists one distribution row, guarded by the unique
	// (tip_id, group_name) constraint. A duplicate insert reports
	// ErrRecordExists so retried invocations stay no-ops.
	CreateRecord(ctx context.Context, record entities.DistributionRecord) error
	ListRecordsByTip(ctx context.Context, restaurantID string, tipID string) ([]entities.DistributionRecord, error)
	// SumRecordsByGroup totals the persisted ledger per group over a window,
	// for reconciliation against the aggregate recompute.
	SumRecordsByGroup(ctx context.Context, restaurantID string, from time.Time, to time.Time) (map[string]decimal.Decimal, error)
}

type BankAccountRepository interface {
	SaveBankAccount(ctx context.Context, account entities.BankAccount) error
	GetBankAccount(ctx context.Context, restaurantID string, groupName string) (entities.BankAccount, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
