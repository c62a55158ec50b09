package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/pricing-engine/internal/db"
	"github.com/Simplici0/pricing-engine/internal/migrations"
	"github.com/Simplici0/pricing-engine/internal/pricing"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "store-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, err = migrations.Up(ctx, database, "../../migrations")
	require.NoError(t, err)

	return New(database), database
}

func mustExec(t *testing.T, database *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := database.Exec(query, args...)
	require.NoError(t, err)
}

func TestLoadReferenceData_ReadsActiveRowsInOrder(t *testing.T) {
	s, database := newTestStore(t)

	mustExec(t, database, `INSERT INTO margin_ranges (id, min_cost, max_cost, margin_percent, is_active, sort_order) VALUES
		('top', '200', NULL, '10', TRUE, 3),
		('low', '0', '50', '35', TRUE, 1),
		('mid', '50', '200', '20', TRUE, 2),
		('off', '0', NULL, '99', FALSE, 0)`)
	mustExec(t, database, `INSERT INTO destinations (country_code, name) VALUES ('ES', 'España')`)
	mustExec(t, database, `INSERT INTO transit_hubs (id, name, country_code) VALUES ('hub-1', 'Shenzhen Hub', 'CN')`)
	mustExec(t, database, `INSERT INTO shipping_routes (id, destination_country_code, transit_hub_id, is_direct, is_active) VALUES
		('route-es', 'es', 'hub-1', FALSE, TRUE),
		('route-old', 'ES', NULL, TRUE, FALSE)`)
	mustExec(t, database, `INSERT INTO route_segments (id, route_id, position, segment, cost_per_kg, cost_per_cbm, min_cost, estimated_days_min, estimated_days_max, is_active) VALUES
		('seg-b', 'route-es', 2, 'hub_to_destination', '1.5', '0', '1', 2, 4, TRUE),
		('seg-a', 'route-es', 1, 'origin_to_hub', '2', '120', '5', 3, 5, TRUE),
		('seg-x', 'route-old', 1, 'direct', '9', '0', '9', 1, 1, TRUE)`)
	mustExec(t, database, `INSERT INTO category_shipping_rates (category_id, fixed_fee, percentage_fee, is_active) VALUES
		('electronics', '2.50', '3', TRUE),
		('textiles', '1', '0', FALSE)`)

	ref, err := s.LoadReferenceData(context.Background())
	require.NoError(t, err)

	require.Len(t, ref.MarginRanges, 3)
	assert.Equal(t, []string{"low", "mid", "top"}, []string{ref.MarginRanges[0].ID, ref.MarginRanges[1].ID, ref.MarginRanges[2].ID})
	require.NotNil(t, ref.MarginRanges[0].MaxCost)
	assert.True(t, ref.MarginRanges[0].MaxCost.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, ref.MarginRanges[2].MaxCost)

	require.Len(t, ref.Routes, 1)
	route := ref.Routes[0]
	assert.Equal(t, "route-es", route.ID)
	assert.Equal(t, "España", route.DestinationName)
	assert.Equal(t, "Shenzhen Hub", route.TransitHubName)
	require.NotNil(t, route.TransitHubID)
	require.Len(t, route.Segments, 2)
	assert.Equal(t, pricing.SegmentOriginToHub, route.Segments[0].Segment)
	assert.Equal(t, pricing.SegmentHubToDestination, route.Segments[1].Segment)
	assert.True(t, route.Segments[0].CostPerCbm.Equal(decimal.NewFromInt(120)))

	require.Len(t, ref.CategoryRates, 1)
	assert.True(t, ref.CategoryRates[0].FixedFee.Equal(decimal.RequireFromString("2.5")))

	engine := pricing.NewEngine(pricing.EngineDeps{Reference: ref})
	price, ok := engine.CalculateProductPrice(pricing.Product{ID: "p", FactoryCost: decimal.NewFromInt(100), CategoryID: "electronics", WeightKg: decimal.NewFromInt(2)}, "ES")
	require.True(t, ok)
	assert.True(t, price.LogisticsCost.Equal(decimal.NewFromInt(8)), "logistics %s", price.LogisticsCost)
	assert.Equal(t, pricing.DayRange{Min: 5, Max: 9}, price.Logistics.EstimatedDays)
}

func TestLoadReferenceData_Empty(t *testing.T) {
	s, _ := newTestStore(t)

	ref, err := s.LoadReferenceData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ref.MarginRanges)
	assert.Empty(t, ref.Routes)
	assert.Empty(t, ref.CategoryRates)
}

func TestGetProducts(t *testing.T) {
	s, database := newTestStore(t)

	mustExec(t, database, `INSERT INTO products (id, sku, factory_cost, category_id, weight_kg, destination_country_code, moq, market_price, admin_suggested_price) VALUES
		('p1', 'SKU-1', '12.40', 'electronics', '0.75', 'ES', 10, NULL, '19.99'),
		('p2', NULL, NULL, NULL, NULL, NULL, 1, NULL, NULL)`)

	products, err := s.GetProducts(context.Background(), []string{"p1", "p2", "missing"})
	require.NoError(t, err)
	require.Len(t, products, 2)

	p1 := products["p1"]
	assert.Equal(t, "SKU-1", p1.SKU)
	assert.True(t, p1.FactoryCost.Equal(decimal.RequireFromString("12.4")))
	assert.True(t, p1.WeightKg.Equal(decimal.RequireFromString("0.75")))
	assert.True(t, p1.MarketPrice.IsZero())
	assert.True(t, p1.AdminSuggestedPrice.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 10, p1.MOQ)

	assert.True(t, products["p2"].FactoryCost.IsZero())

	empty, err := s.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetProduct_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetProduct(context.Background(), "nope")
	require.ErrorIs(t, err, ErrProductNotFound)
}
