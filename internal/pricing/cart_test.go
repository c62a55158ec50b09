package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateCartLogistics_Totals(t *testing.T) {
	engine := NewEngine(EngineDeps{Reference: scenarioReference(t), Workers: 3})
	products := map[string]Product{
		"p1": {ID: "p1", FactoryCost: dec(t, "100")},
		"p2": {ID: "p2", FactoryCost: dec(t, "50"), WeightKg: dec(t, "2")},
	}
	items := []CartLineItem{
		{ID: "a", ProductID: "p1", Quantity: 3, UnitCost: dec(t, "1")},
		{ID: "b", ProductID: "p2", Quantity: 2},
		{ID: "c", ProductID: "p9", Quantity: 1, UnitCost: dec(t, "10")},
		{ID: "d", ProductID: "p1", Quantity: 0},
		{ID: "e", ProductID: "p8", Quantity: 4},
	}

	summary := engine.CalculateCartLogistics(items, products, "es")

	if len(summary.Items) != 3 {
		t.Fatalf("expected 3 priced lines, got %d", len(summary.Items))
	}
	if len(summary.Skipped) != 2 || summary.Skipped[0] != "d" || summary.Skipped[1] != "e" {
		t.Fatalf("skipped = %v, want [d e]", summary.Skipped)
	}

	equalDecimal(t, "line a unit final", summary.Items[0].UnitFinal, "123")
	equalDecimal(t, "line a unit cost uses product record", summary.Items[0].UnitCost, "100")
	equalDecimal(t, "line b final", summary.Items[1].FinalPrice, "136")
	equalDecimal(t, "line c falls back to unit cost", summary.Items[2].UnitFinal, "15")

	equalDecimal(t, "totalFactoryCost", summary.TotalFactoryCost, "410")
	equalDecimal(t, "totalMargin", summary.TotalMargin, "82")
	equalDecimal(t, "totalLogistics", summary.TotalLogistics, "28")
	equalDecimal(t, "totalCategoryFees", summary.TotalCategoryFees, "0")
	equalDecimal(t, "totalFinalPrice", summary.TotalFinalPrice, "520")
	if summary.TotalQuantity != 6 {
		t.Fatalf("totalQuantity = %d, want 6", summary.TotalQuantity)
	}
	if summary.EstimatedDays != (DayRange{Min: 5, Max: 10}) {
		t.Fatalf("days = %+v, want {5 10}", summary.EstimatedDays)
	}
	if summary.RouteID != "route-es" || summary.RouteName != "Direct → España" {
		t.Fatalf("route = %q / %q", summary.RouteID, summary.RouteName)
	}
}

func TestCalculateCartLogistics_DefaultDaysWithoutRoute(t *testing.T) {
	engine := NewEngine(EngineDeps{})

	summary := engine.CalculateCartLogistics([]CartLineItem{{ID: "a", ProductID: "p", Quantity: 2, UnitCost: dec(t, "50")}}, nil, "")

	equalDecimal(t, "totalFinalPrice", summary.TotalFinalPrice, "130")
	equalDecimal(t, "totalLogistics", summary.TotalLogistics, "0")
	if summary.EstimatedDays != DefaultDeliveryDays {
		t.Fatalf("days = %+v, want default", summary.EstimatedDays)
	}
	if summary.RouteID != "" {
		t.Fatalf("expected no route, got %q", summary.RouteID)
	}
}

func TestCalculateCartLogistics_EmptyCart(t *testing.T) {
	summary := NewEngine(EngineDeps{Reference: scenarioReference(t)}).CalculateCartLogistics(nil, nil, "")

	if len(summary.Items) != 0 || len(summary.Skipped) != 0 || summary.TotalQuantity != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	equalDecimal(t, "totalFinalPrice", summary.TotalFinalPrice, "0")
	if summary.EstimatedDays != DefaultDeliveryDays {
		t.Fatalf("days = %+v, want default", summary.EstimatedDays)
	}
}

func TestCalculateCartLogistics_Additivity(t *testing.T) {
	ref := scenarioReference(t)
	ref.CategoryRates = []CategoryShippingRate{{CategoryID: "c", FixedFee: dec(t, "0.37"), PercentageFee: dec(t, "1.7"), IsActive: true}}
	engine := NewEngine(EngineDeps{Reference: ref})

	products := map[string]Product{}
	items := make([]CartLineItem, 0, 40)
	for i := 1; i <= 40; i++ {
		id := string(rune('A'+i%26)) + decimal.NewFromInt(int64(i)).String()
		products[id] = Product{ID: id, FactoryCost: decimal.New(int64(i*731+13), -2), CategoryID: "c", WeightKg: decimal.New(int64(i*37), -2)}
		items = append(items, CartLineItem{ID: "line-" + id, ProductID: id, Quantity: i%7 + 1})
	}

	summary := engine.CalculateCartLogistics(items, products, "ES")

	sum := decimal.Zero
	for _, line := range summary.Items {
		sum = sum.Add(line.UnitFinal.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	tolerance := decimal.New(1, -2).Mul(decimal.NewFromInt(int64(len(summary.Items))))
	if summary.TotalFinalPrice.Sub(sum).Abs().GreaterThan(tolerance) {
		t.Fatalf("total %s differs from line sum %s beyond %s", summary.TotalFinalPrice, sum, tolerance)
	}
}

func TestCalculateCartLogistics_TrimsProductID(t *testing.T) {
	engine := NewEngine(EngineDeps{Reference: scenarioReference(t)})
	products := map[string]Product{"p1": {ID: "p1", FactoryCost: dec(t, "100")}}

	summary := engine.CalculateCartLogistics([]CartLineItem{{ID: "l1", ProductID: " p1 ", Quantity: 2}}, products, "ES")

	if len(summary.Items) != 1 || len(summary.Skipped) != 0 {
		t.Fatalf("expected the padded id to resolve, got items=%d skipped=%v", len(summary.Items), summary.Skipped)
	}
	line := summary.Items[0]
	if line.ProductID != "p1" {
		t.Fatalf("productId = %q, want p1", line.ProductID)
	}
	equalDecimal(t, "unit cost from product record", line.UnitCost, "100")
	equalDecimal(t, "line final", line.FinalPrice, "246")
}
