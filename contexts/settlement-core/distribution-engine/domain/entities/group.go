package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
)

// PercentageTolerance is the accepted drift when a restaurant's group
// percentages are checked against 100.
var PercentageTolerance = decimal.NewFromFloat(0.01)

var oneHundred = decimal.NewFromInt(100)

// DistributionGroup is a named share of a restaurant's pool, e.g. waiters,
// kitchen, owners.
type DistributionGroup struct {
	ID            string
	RestaurantID  string
	Name          string
	Percentage    decimal.Decimal
	BankAccountID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewDistributionGroup(
	id string,
	restaurantID string,
	name string,
	percentage decimal.Decimal,
	createdAt time.Time,
) (DistributionGroup, error) {
	if strings.TrimSpace(id) == "" ||
		strings.TrimSpace(restaurantID) == "" ||
		strings.TrimSpace(name) == "" {
		return DistributionGroup{}, domainerrors.ErrInvalidGroupInput
	}
	if percentage.IsNegative() || percentage.GreaterThan(oneHundred) {
		return DistributionGroup{}, domainerrors.ErrInvalidGroupInput
	}
	return DistributionGroup{
		ID:           strings.TrimSpace(id),
		RestaurantID: strings.TrimSpace(restaurantID),
		Name:         strings.TrimSpace(name),
		Percentage:   percentage,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    createdAt.UTC(),
	}, nil
}

// ValidatePercentages enforces the write-time invariant: a restaurant's
// group percentages sum to exactly 100 within tolerance, with no duplicate
// names.
func ValidatePercentages(groups []DistributionGroup) error {
	if len(groups) == 0 {
		return domainerrors.ErrNoGroupsConfigured
	}
	seen := make(map[string]bool, len(groups))
	total := decimal.Zero
	for _, group := range groups {
		if seen[group.Name] {
			return domainerrors.ErrInvalidGroupInput
		}
		seen[group.Name] = true
		total = total.Add(group.Percentage)
	}
	if total.Sub(oneHundred).Abs().GreaterThan(PercentageTolerance) {
		return domainerrors.ErrPercentagesNotWhole
	}
	return nil
}

// Share computes this group's cut of a net amount, rounded to two decimals.
func (g DistributionGroup) Share(net decimal.Decimal) decimal.Decimal {
	return net.Mul(g.Percentage).Div(oneHundred).Round(2)
}

// DistributionRecord is one row per (completed restaurant-wide tip, group);
// created exactly once and immutable thereafter.
type DistributionRecord struct {
	ID           string
	TipID        string
	RestaurantID string
	GroupName    string
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

// BankAccount is a verified disbursement destination for a group; at most
// one per (restaurant, group).
type BankAccount struct {
	ID            string
	RestaurantID  string
	GroupName     string
	BankName      string
	AccountName   string
	AccountNumber string
	Verified      bool
	Default       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewBankAccount(
	id string,
	restaurantID string,
	groupName string,
	bankName string,
	accountName string,
	accountNumber string,
	createdAt time.Time,
) (BankAccount, error) {
	if strings.TrimSpace(id) == "" ||
		strings.TrimSpace(restaurantID) == "" ||
		strings.TrimSpace(groupName) == "" ||
		strings.TrimSpace(bankName) == "" ||
		strings.TrimSpace(accountNumber) == "" {
		return BankAccount{}, domainerrors.ErrInvalidBankAccount
	}
	return BankAccount{
		ID:            strings.TrimSpace(id),
		RestaurantID:  strings.TrimSpace(restaurantID),
		GroupName:     strings.TrimSpace(groupName),
		BankName:      strings.TrimSpace(bankName),
		AccountName:   strings.TrimSpace(accountName),
		AccountNumber: strings.TrimSpace(accountNumber),
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
	}, nil
}
