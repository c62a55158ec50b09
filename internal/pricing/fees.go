package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CalculateCategoryFees returns fixedFee + cost*percentageFee/100 for the category's active rate,
// rounded to cents. Products without a category, or categories without an active rate, pay nothing.
func CalculateCategoryFees(rates []CategoryShippingRate, categoryID string, cost decimal.Decimal) decimal.Decimal {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return decimal.Zero
	}
	for _, rate := range rates {
		if !rate.IsActive || rate.CategoryID != categoryID {
			continue
		}
		return Round2(rate.FixedFee.Add(percentOf(cost, rate.PercentageFee)))
	}
	return decimal.Zero
}
