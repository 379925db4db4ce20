package services

import "github.com/shopspring/decimal"

// MinimumPayoutAmount is the floor below which a recipient's monthly
// amount, waiter net total or group allotment alike, does not become a
// payout obligation. Sub-threshold balances are dropped for the month,
// not rolled forward.
var MinimumPayoutAmount = decimal.NewFromInt(100)

// MeetsMinimum reports whether a monthly net total is large enough to
// generate a payout.
func MeetsMinimum(net decimal.Decimal, minimum decimal.Decimal) bool {
	if minimum.IsZero() {
		minimum = MinimumPayoutAmount
	}
	return net.GreaterThanOrEqual(minimum)
}

// GroupShare computes a group's cut of the restaurant-wide net total
// for the month, using the group's current percentage.
func GroupShare(totalNet decimal.Decimal, percentage decimal.Decimal) decimal.Decimal {
	return totalNet.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2)
}

// MobileMoneyAmount rounds a payout amount to whole currency units as
// the bulk mobile money rail requires.
func MobileMoneyAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}
