package services

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// AmountTolerance is the currency-rounding tolerance used wherever two
// amounts are compared for equality.
var AmountTolerance = decimal.NewFromFloat(0.01)

// ComputeCommission splits a gross amount at ratePercent into the platform
// commission and the net owed to recipients, both rounded to two decimals.
// Deterministic and free of global state; the rate range is validated at
// configuration time, not here.
func ComputeCommission(gross decimal.Decimal, ratePercent decimal.Decimal) (commission decimal.Decimal, net decimal.Decimal) {
	commission = gross.Mul(ratePercent).Div(oneHundred).Round(2)
	net = gross.Sub(commission).Round(2)
	return commission, net
}

// AmountsMatch reports whether two amounts are equal within the
// currency-rounding tolerance.
func AmountsMatch(a decimal.Decimal, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
