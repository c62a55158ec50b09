package pricing

import (
	"runtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine prices products and carts against one immutable ReferenceData snapshot.
// It keeps no mutable state and is safe for concurrent use.
type Engine struct {
	ref     ReferenceData
	logger  *zap.Logger
	workers int
}

// EngineDeps groups the inputs needed to build an Engine.
type EngineDeps struct {
	Reference ReferenceData
	Logger    *zap.Logger
	// Workers bounds batch fan-out; zero means GOMAXPROCS.
	Workers int
}

// NewEngine builds an Engine over the supplied snapshot.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{ref: deps.Reference, logger: logger, workers: workers}
}

// Reference returns the snapshot the engine calculates against.
func (e *Engine) Reference() ReferenceData {
	return e.ref
}

// ResolveRoute applies the route lookup policy: destination, else the snapshot's default destination.
func (e *Engine) ResolveRoute(destination string) *ShippingRoute {
	return SelectRoute(e.ref.Routes, destination, e.ref.DefaultDestination)
}

// ResolveMargin returns the matching margin range, if any, and the percent that applies to cost.
func (e *Engine) ResolveMargin(cost decimal.Decimal) (*MarginRange, decimal.Decimal) {
	return marginPercentFor(cost, e.ref.MarginRanges)
}

// EstimateLogistics prices shipping weightKg to destination. A non-positive weight uses DefaultWeightKg.
func (e *Engine) EstimateLogistics(destination string, weightKg decimal.Decimal) Logistics {
	route := e.ResolveRoute(destination)
	return logisticsFor(route, CalculateRouteCost(route, Product{WeightKg: weightKg}.weight()))
}

// CategoryFees returns the handling fees for one unit of categoryID at factoryCost.
func (e *Engine) CategoryFees(categoryID string, factoryCost decimal.Decimal) decimal.Decimal {
	return CalculateCategoryFees(e.ref.CategoryRates, categoryID, factoryCost)
}

// breakdown holds the B2B-space results for one unit (margin, logistics, fees).
type breakdown struct {
	FactoryCost        decimal.Decimal
	MarginRange        *MarginRange
	MarginPercent      decimal.Decimal
	MarginValue        decimal.Decimal
	SubtotalWithMargin decimal.Decimal
	Route              RouteCost
	CategoryFees       decimal.Decimal
	FinalB2BPrice      decimal.Decimal
}

// calculateUnit applies the protection rule: margin is taken on factory cost alone, and only then
// are logistics and category fees added on top.
func (e *Engine) calculateUnit(factoryCost decimal.Decimal, categoryID string, weightKg decimal.Decimal, route *ShippingRoute) breakdown {
	matched, marginPercent := marginPercentFor(factoryCost, e.ref.MarginRanges)
	marginValue := Round2(percentOf(factoryCost, marginPercent))
	subtotal := Round2(factoryCost.Add(marginValue))

	routeCost := CalculateRouteCost(route, weightKg)
	fees := CalculateCategoryFees(e.ref.CategoryRates, categoryID, factoryCost)

	return breakdown{
		FactoryCost:        factoryCost,
		MarginRange:        matched,
		MarginPercent:      marginPercent,
		MarginValue:        marginValue,
		SubtotalWithMargin: subtotal,
		Route:              routeCost,
		CategoryFees:       fees,
		FinalB2BPrice:      Round2(subtotal.Add(routeCost.Cost).Add(fees)),
	}
}

// CalculateProductPrice returns the full price breakdown for product. The destination argument
// wins over the product's own destination, which wins over the default destination.
// A product without a positive factory cost has no price and reports false.
func (e *Engine) CalculateProductPrice(product Product, destination string) (CalculatedPrice, bool) {
	if !product.FactoryCost.IsPositive() {
		return CalculatedPrice{}, false
	}
	if destination == "" {
		destination = product.DestinationCountryCode
	}
	route := e.ResolveRoute(destination)
	unit := e.calculateUnit(product.FactoryCost, product.CategoryID, product.weight(), route)

	pvp, source := suggestedPVP(unit.FinalB2BPrice, product)
	profit := Round2(pvp.Sub(unit.FinalB2BPrice))
	roi := decimal.Zero
	if unit.FinalB2BPrice.IsPositive() {
		roi = Round1(profit.Div(unit.FinalB2BPrice).Mul(hundred))
	}

	return CalculatedPrice{
		ProductID:          product.ID,
		FactoryCost:        unit.FactoryCost,
		MarginRange:        unit.MarginRange,
		MarginPercent:      unit.MarginPercent,
		MarginValue:        unit.MarginValue,
		SubtotalWithMargin: unit.SubtotalWithMargin,
		LogisticsCost:      unit.Route.Cost,
		CategoryFees:       unit.CategoryFees,
		FinalB2BPrice:      unit.FinalB2BPrice,
		SuggestedPVP:       pvp,
		PVPSource:          source,
		ProfitAmount:       profit,
		ROIPercent:         roi,
		Logistics:          logisticsFor(route, unit.Route),
	}, true
}

// suggestedPVP picks the consumer price: market reference, then admin-set, then the 1.3x markup.
func suggestedPVP(finalB2B decimal.Decimal, product Product) (decimal.Decimal, PVPSource) {
	if product.MarketPrice.IsPositive() {
		return Round2(product.MarketPrice), PVPSourceMarket
	}
	if product.AdminSuggestedPrice.IsPositive() {
		return Round2(product.AdminSuggestedPrice), PVPSourceAdmin
	}
	return Round2(finalB2B.Mul(DefaultPVPMultiplier)), PVPSourceCalculated
}

func logisticsFor(route *ShippingRoute, cost RouteCost) Logistics {
	out := Logistics{Cost: cost.Cost, EstimatedDays: DefaultDeliveryDays}
	if route == nil {
		return out
	}
	out.RouteID = route.ID
	out.RouteName = route.Name()
	if cost.Segments > 0 {
		out.EstimatedDays = cost.Days
		out.HasRouteData = true
	}
	return out
}

// CalculateBatchPrices prices every product independently and returns the results keyed by
// product id. Products without a price are left out; a repeated id keeps its first result.
func (e *Engine) CalculateBatchPrices(products []Product, destination string) map[string]CalculatedPrice {
	type slot struct {
		price CalculatedPrice
		ok    bool
	}
	slots := make([]slot, len(products))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range products {
		i := i
		g.Go(func() error {
			price, ok := e.CalculateProductPrice(products[i], destination)
			slots[i] = slot{price: price, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]CalculatedPrice, len(products))
	skipped := 0
	for i, s := range slots {
		if !s.ok {
			skipped++
			continue
		}
		if _, exists := out[products[i].ID]; exists {
			continue
		}
		out[products[i].ID] = s.price
	}
	if skipped > 0 {
		e.logger.Debug("batch pricing skipped products without factory cost",
			zap.Int("skipped", skipped),
			zap.Int("priced", len(out)),
		)
	}
	return out
}
