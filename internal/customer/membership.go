package customer

import "github.com/shopspring/decimal"

// Membership thresholds are inclusive lower bounds on cumulative spend,
// checked from highest to lowest.
var (
	platinumThreshold = decimal.NewFromInt(50000)
	goldThreshold     = decimal.NewFromInt(25000)
	silverThreshold   = decimal.NewFromInt(10000)

	loyaltyPointUnit = decimal.NewFromInt(100)
)

// LevelForSpend maps cumulative spend to a membership level.
func LevelForSpend(totalSpent decimal.Decimal) MembershipLevel {
	switch {
	case totalSpent.GreaterThanOrEqual(platinumThreshold):
		return LevelPlatinum
	case totalSpent.GreaterThanOrEqual(goldThreshold):
		return LevelGold
	case totalSpent.GreaterThanOrEqual(silverThreshold):
		return LevelSilver
	default:
		return LevelBronze
	}
}

// PointsForOrder converts an order total into loyalty points: one point per
// 100 currency units, fractions dropped.
func PointsForOrder(total decimal.Decimal) int64 {
	if total.IsNegative() {
		return 0
	}
	return total.Div(loyaltyPointUnit).Floor().IntPart()
}
