package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RouteCost is the logistics contribution of a route for one shipment weight.
// Segments counts the active segments that were priced; zero means no logistics data.
type RouteCost struct {
	Cost     decimal.Decimal `json:"cost"`
	Days     DayRange        `json:"days"`
	Segments int             `json:"segments"`
}

// CalculateRouteCost prices every active segment of route in storage order. Each segment costs
// max(costPerKg*weight, minCost); costs and day bounds add up because legs run one after another.
func CalculateRouteCost(route *ShippingRoute, weightKg decimal.Decimal) RouteCost {
	result := RouteCost{Cost: decimal.Zero}
	if route == nil {
		return result
	}

	total := decimal.Zero
	for _, segment := range route.Segments {
		if !segment.IsActive {
			continue
		}
		segmentCost := decimal.Max(segment.CostPerKg.Mul(weightKg), segment.MinCost)
		total = total.Add(segmentCost)
		result.Days.Min += segment.EstimatedDaysMin
		result.Days.Max += segment.EstimatedDaysMax
		result.Segments++
	}

	result.Cost = Round2(total)
	return result
}

// SelectRoute returns the first active route for destination, matched case-insensitively.
// An empty destination uses fallback. One active route per destination is assumed.
func SelectRoute(routes []ShippingRoute, destination, fallback string) *ShippingRoute {
	code := normalizeCountryCode(destination)
	if code == "" {
		code = normalizeCountryCode(fallback)
	}
	if code == "" {
		return nil
	}
	for i := range routes {
		if !routes[i].IsActive {
			continue
		}
		if normalizeCountryCode(routes[i].DestinationCountryCode) == code {
			return &routes[i]
		}
	}
	return nil
}

func normalizeCountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
