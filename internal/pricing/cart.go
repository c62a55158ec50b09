package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CartItemLogistics is the B2B breakdown of one cart line: unit values and the line totals.
type CartItemLogistics struct {
	ItemID        string          `json:"itemId"`
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	MarginPercent decimal.Decimal `json:"marginPercent"`
	UnitMargin    decimal.Decimal `json:"unitMargin"`
	UnitLogistics decimal.Decimal `json:"unitLogistics"`
	UnitFees      decimal.Decimal `json:"unitFees"`
	UnitFinal     decimal.Decimal `json:"unitFinal"`

	FactoryCost   decimal.Decimal `json:"factoryCost"`
	MarginValue   decimal.Decimal `json:"marginValue"`
	LogisticsCost decimal.Decimal `json:"logisticsCost"`
	CategoryFees  decimal.Decimal `json:"categoryFees"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`

	EstimatedDays DayRange `json:"estimatedDays"`
	HasRouteData  bool     `json:"hasRouteData"`
}

// CartLogisticsSummary aggregates a cart. Skipped lists line ids that could not be priced.
type CartLogisticsSummary struct {
	Items   []CartItemLogistics `json:"items"`
	Skipped []string            `json:"skipped"`

	TotalFactoryCost  decimal.Decimal `json:"totalFactoryCost"`
	TotalMargin       decimal.Decimal `json:"totalMargin"`
	TotalLogistics    decimal.Decimal `json:"totalLogistics"`
	TotalCategoryFees decimal.Decimal `json:"totalCategoryFees"`
	TotalFinalPrice   decimal.Decimal `json:"totalFinalPrice"`
	TotalQuantity     int             `json:"totalQuantity"`

	RouteID       string   `json:"routeId,omitempty"`
	RouteName     string   `json:"routeName,omitempty"`
	EstimatedDays DayRange `json:"estimatedDays"`
}

// CalculateCartLogistics prices each line in B2B cost space and rolls the lines up. Product records
// supply factory cost, category and weight; a line whose product is unknown or has no cost falls back
// to its own unit cost. Lines that still have no positive cost, or a non-positive quantity, are
// skipped without affecting the rest of the cart.
func (e *Engine) CalculateCartLogistics(items []CartLineItem, products map[string]Product, destination string) CartLogisticsSummary {
	route := e.ResolveRoute(destination)

	type slot struct {
		line CartItemLogistics
		ok   bool
	}
	slots := make([]slot, len(items))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range items {
		i := i
		g.Go(func() error {
			line, ok := e.calculateCartLine(items[i], products, route)
			slots[i] = slot{line: line, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	summary := CartLogisticsSummary{
		Items:             make([]CartItemLogistics, 0, len(items)),
		Skipped:           []string{},
		TotalFactoryCost:  decimal.Zero,
		TotalMargin:       decimal.Zero,
		TotalLogistics:    decimal.Zero,
		TotalCategoryFees: decimal.Zero,
		TotalFinalPrice:   decimal.Zero,
	}
	if route != nil {
		summary.RouteID = route.ID
		summary.RouteName = route.Name()
	}

	haveDays := false
	for i, s := range slots {
		if !s.ok {
			summary.Skipped = append(summary.Skipped, items[i].ID)
			continue
		}
		line := s.line
		summary.Items = append(summary.Items, line)
		summary.TotalFactoryCost = summary.TotalFactoryCost.Add(line.FactoryCost)
		summary.TotalMargin = summary.TotalMargin.Add(line.MarginValue)
		summary.TotalLogistics = summary.TotalLogistics.Add(line.LogisticsCost)
		summary.TotalCategoryFees = summary.TotalCategoryFees.Add(line.CategoryFees)
		summary.TotalFinalPrice = summary.TotalFinalPrice.Add(line.FinalPrice)
		summary.TotalQuantity += line.Quantity

		if !line.HasRouteData {
			continue
		}
		if !haveDays {
			summary.EstimatedDays = line.EstimatedDays
			haveDays = true
			continue
		}
		summary.EstimatedDays.Min = max(summary.EstimatedDays.Min, line.EstimatedDays.Min)
		summary.EstimatedDays.Max = max(summary.EstimatedDays.Max, line.EstimatedDays.Max)
	}
	if !haveDays {
		summary.EstimatedDays = DefaultDeliveryDays
	}

	summary.TotalFactoryCost = Round2(summary.TotalFactoryCost)
	summary.TotalMargin = Round2(summary.TotalMargin)
	summary.TotalLogistics = Round2(summary.TotalLogistics)
	summary.TotalCategoryFees = Round2(summary.TotalCategoryFees)
	summary.TotalFinalPrice = Round2(summary.TotalFinalPrice)

	if len(summary.Skipped) > 0 {
		e.logger.Debug("cart lines skipped",
			zap.Strings("item_ids", summary.Skipped),
			zap.Int("priced", len(summary.Items)),
		)
	}
	return summary
}

func (e *Engine) calculateCartLine(item CartLineItem, products map[string]Product, route *ShippingRoute) (CartItemLogistics, bool) {
	if item.Quantity <= 0 {
		return CartItemLogistics{}, false
	}

	productID := strings.TrimSpace(item.ProductID)
	product, found := products[productID]
	cost := item.UnitCost
	if found && product.FactoryCost.IsPositive() {
		cost = product.FactoryCost
	}
	if !cost.IsPositive() {
		return CartItemLogistics{}, false
	}
	weight := DefaultWeightKg
	categoryID := ""
	if found {
		weight = product.weight()
		categoryID = product.CategoryID
	}

	unit := e.calculateUnit(cost, categoryID, weight, route)
	qty := decimal.NewFromInt(int64(item.Quantity))
	line := CartItemLogistics{
		ItemID:        item.ID,
		ProductID:     productID,
		Quantity:      item.Quantity,
		UnitCost:      cost,
		MarginPercent: unit.MarginPercent,
		UnitMargin:    unit.MarginValue,
		UnitLogistics: unit.Route.Cost,
		UnitFees:      unit.CategoryFees,
		UnitFinal:     unit.FinalB2BPrice,
		FactoryCost:   Round2(cost.Mul(qty)),
		MarginValue:   Round2(unit.MarginValue.Mul(qty)),
		LogisticsCost: Round2(unit.Route.Cost.Mul(qty)),
		CategoryFees:  Round2(unit.CategoryFees.Mul(qty)),
		FinalPrice:    Round2(unit.FinalB2BPrice.Mul(qty)),
	}
	if unit.Route.Segments > 0 {
		line.EstimatedDays = unit.Route.Days
		line.HasRouteData = true
	}
	return line, true
}
