package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricing-engine/internal/db"
	"github.com/Simplici0/pricing-engine/internal/migrations"
	"github.com/Simplici0/pricing-engine/internal/pricing"
	"github.com/Simplici0/pricing-engine/internal/store"
)

func openSeedDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if _, err := migrations.Up(ctx, database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	database := openSeedDB(t)
	ctx := context.Background()
	cfg := Config{DefaultDestination: "es"}

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 8 {
				t.Fatalf("expected 8 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 || stats.Updates != 0 {
			t.Fatalf("expected no changes in iteration %d, got %+v", i, stats)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM margin_ranges`, nil, 4)
	assertCount(t, database, `SELECT COUNT(*) FROM destinations WHERE country_code = ?`, "ES", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM shipping_routes WHERE destination_country_code = ?`, "ES", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM route_segments`, nil, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM category_shipping_rates WHERE category_id = ?`, "general", 1)
}

func TestRunReactivatesDestination(t *testing.T) {
	t.Parallel()

	database := openSeedDB(t)
	ctx := context.Background()

	if _, err := database.Exec(`INSERT INTO destinations (country_code, name, is_active) VALUES ('MX', 'México', FALSE)`); err != nil {
		t.Fatalf("insert destination: %v", err)
	}

	stats, err := Run(ctx, database, Config{DefaultDestination: "MX"})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Updates != 1 {
		t.Fatalf("expected 1 update, got %d", stats.Updates)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM destinations WHERE country_code = ? AND is_active = TRUE`, "MX", 1)
}

func TestSeededDataPricesTheFallbackDestination(t *testing.T) {
	t.Parallel()

	database := openSeedDB(t)
	ctx := context.Background()
	if _, err := Run(ctx, database, Config{}); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	ref, err := store.New(database).LoadReferenceData(ctx)
	if err != nil {
		t.Fatalf("load reference data: %v", err)
	}
	ref.DefaultDestination = "ES"
	if err := pricing.ValidateReferenceData(ref); err != nil {
		t.Fatalf("seeded data failed validation: %v", err)
	}

	engine := pricing.NewEngine(pricing.EngineDeps{Reference: ref})
	price, ok := engine.CalculateProductPrice(pricing.Product{ID: "p", FactoryCost: decimal.NewFromInt(100)}, "")
	if !ok {
		t.Fatalf("expected a price")
	}
	// 100 falls in the 50-200 band (30%), direct route 4/kg with a 3 minimum.
	if !price.FinalB2BPrice.Equal(decimal.NewFromInt(133)) {
		t.Fatalf("final = %s, want 133", price.FinalB2BPrice)
	}
	if price.Logistics.RouteName != "Direct → España" {
		t.Fatalf("routeName = %q", price.Logistics.RouteName)
	}
	if price.Logistics.EstimatedDays != (pricing.DayRange{Min: 7, Max: 21}) {
		t.Fatalf("days = %+v", price.Logistics.EstimatedDays)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
