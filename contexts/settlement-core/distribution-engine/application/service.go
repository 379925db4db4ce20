package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/distribution-engine/domain/entities"
	domainerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
	"tippy/contexts/settlement-core/distribution-engine/ports"
)

const moduleName = "settlement-core/distribution-engine"

type Service struct {
	Groups   ports.GroupRepository
	Records  ports.RecordRepository
	Accounts ports.BankAccountRepository
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// ConfigureGroups replaces the restaurant's group set. Percentages must sum
// to 100 within tolerance; a bad set is rejected before any write. Changes
// apply to future distributions only.
func (s Service) ConfigureGroups(
	ctx context.Context,
	restaurantID string,
	inputs []ports.GroupInput,
) ([]entities.DistributionGroup, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidGroupInput
	}

	now := s.now()
	groups := make([]entities.DistributionGroup, 0, len(inputs))
	for _, input := range inputs {
		id, err := s.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		group, err := entities.NewDistributionGroup(id, restaurantID, input.Name, input.Percentage, now)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := entities.ValidatePercentages(groups); err != nil {
		return nil, err
	}

	if err := s.Groups.ReplaceGroups(ctx, strings.TrimSpace(restaurantID), groups); err != nil {
		return nil, err
	}
	ResolveLogger(s.Logger).Info("distribution groups configured",
		"event", "distribution_groups_configured",
		"module", moduleName,
		"layer", "application",
		"restaurant_id", strings.TrimSpace(restaurantID),
		"group_count", len(groups),
	)
	return groups, nil
}

func (s Service) ListGroups(ctx context.Context, restaurantID string) ([]entities.DistributionGroup, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidGroupInput
	}
	return s.Groups.ListGroups(ctx, strings.TrimSpace(restaurantID))
}

// DistributeTip writes one DistributionRecord per configured group for a
// completed restaurant-wide tip. The groups on file right now are the
// recipient-of-record; their sum is not re-validated here. Duplicate rows
// from a retried settlement are swallowed via the uniqueness guard.
func (s Service) DistributeTip(
	ctx context.Context,
	restaurantID string,
	tipID string,
	net decimal.Decimal,
) error {
	if strings.TrimSpace(restaurantID) == "" || strings.TrimSpace(tipID) == "" {
		return domainerrors.ErrTipNotDistributable
	}
	if net.IsNegative() {
		return domainerrors.ErrTipNotDistributable
	}

	groups, err := s.Groups.ListGroups(ctx, strings.TrimSpace(restaurantID))
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return domainerrors.ErrNoGroupsConfigured
	}

	logger := ResolveLogger(s.Logger)
	now := s.now()
	created := 0
	for _, group := range groups {
		id, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		record := entities.DistributionRecord{
			ID:           id,
			TipID:        strings.TrimSpace(tipID),
			RestaurantID: strings.TrimSpace(restaurantID),
			GroupName:    group.Name,
			Amount:       group.Share(net),
			CreatedAt:    now,
		}
		if err := s.Records.CreateRecord(ctx, record); err != nil {
			if errors.Is(err, domainerrors.ErrRecordExists) {
				continue
			}
			return err
		}
		created++
	}

	logger.Info("tip distributed",
		"event", "tip_distributed",
		"module", moduleName,
		"layer", "application",
		"tip_id", strings.TrimSpace(tipID),
		"restaurant_id", strings.TrimSpace(restaurantID),
		"net", net.String(),
		"records_created", created,
		"records_existing", len(groups)-created,
	)
	return nil
}

func (s Service) ListRecordsByTip(ctx context.Context, restaurantID string, tipID string) ([]entities.DistributionRecord, error) {
	if strings.TrimSpace(restaurantID) == "" || strings.TrimSpace(tipID) == "" {
		return nil, domainerrors.ErrInvalidGroupInput
	}
	return s.Records.ListRecordsByTip(ctx, strings.TrimSpace(restaurantID), strings.TrimSpace(tipID))
}

// LedgerTotals sums the persisted distribution ledger per group over a
// window. Monthly payouts recompute from aggregate tip totals instead; this
// exists so the two sources can be reconciled.
func (s Service) LedgerTotals(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (map[string]decimal.Decimal, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidGroupInput
	}
	return s.Records.SumRecordsByGroup(ctx, strings.TrimSpace(restaurantID), from.UTC(), to.UTC())
}

func (s Service) SaveBankAccount(
	ctx context.Context,
	restaurantID string,
	groupName string,
	bankName string,
	accountName string,
	accountNumber string,
) (entities.BankAccount, error) {
	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.BankAccount{}, err
	}
	account, err := entities.NewBankAccount(id, restaurantID, groupName, bankName, accountName, accountNumber, s.now())
	if err != nil {
		return entities.BankAccount{}, err
	}
	if err := s.Accounts.SaveBankAccount(ctx, account); err != nil {
		return entities.BankAccount{}, err
	}
	ResolveLogger(s.Logger).Info("bank account saved",
		"event", "bank_account_saved",
		"module", moduleName,
		"layer", "application",
		"restaurant_id", account.RestaurantID,
		"group_name", account.GroupName,
	)
	return account, nil
}

func (s Service) GetBankAccount(ctx context.Context, restaurantID string, groupName string) (entities.BankAccount, error) {
	if strings.TrimSpace(restaurantID) == "" || strings.TrimSpace(groupName) == "" {
		return entities.BankAccount{}, domainerrors.ErrInvalidBankAccount
	}
	return s.Accounts.GetBankAccount(ctx, strings.TrimSpace(restaurantID), strings.TrimSpace(groupName))
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
