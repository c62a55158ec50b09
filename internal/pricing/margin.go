package pricing

import "github.com/shopspring/decimal"

// ResolveMarginRange returns the first active range, in the given order, whose band contains cost.
// Bands include their lower bound and exclude their upper bound. A nil result is a normal outcome;
// callers fall back to DefaultMarginPercent.
func ResolveMarginRange(cost decimal.Decimal, ranges []MarginRange) *MarginRange {
	for i := range ranges {
		r := ranges[i]
		if !r.IsActive {
			continue
		}
		if cost.LessThan(r.MinCost) {
			continue
		}
		if r.MaxCost != nil && !cost.LessThan(*r.MaxCost) {
			continue
		}
		return &r
	}
	return nil
}

func marginPercentFor(cost decimal.Decimal, ranges []MarginRange) (*MarginRange, decimal.Decimal) {
	matched := ResolveMarginRange(cost, ranges)
	if matched == nil {
		return nil, DefaultMarginPercent
	}
	return matched, matched.MarginPercent
}
