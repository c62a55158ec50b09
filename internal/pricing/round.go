package pricing

import "github.com/shopspring/decimal"

var (
	// DefaultMarginPercent applies when no margin range matches a factory cost.
	DefaultMarginPercent = decimal.NewFromInt(30)
	// DefaultPVPMultiplier is the consumer-price markup over the final B2B price.
	DefaultPVPMultiplier = decimal.RequireFromString("1.3")
	// DefaultWeightKg is used for products without a recorded weight.
	DefaultWeightKg = decimal.RequireFromString("0.5")

	hundred = decimal.NewFromInt(100)
)

// DefaultDeliveryDays is reported when no route data is available.
var DefaultDeliveryDays = DayRange{Min: 7, Max: 21}

// Round2 rounds a monetary amount to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round1 rounds to one decimal place; used for percentages such as ROI.
func Round1(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}

func percentOf(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}
