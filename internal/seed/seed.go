package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultDestinationCode = "ES"
	defaultDestinationName = "España"
	defaultCategoryID      = "general"
)

// defaultMarginBands are the starting cost bands; cheaper goods carry a larger margin.
var defaultMarginBands = []struct {
	min, max, percent string
}{
	{"0", "10", "50"},
	{"10", "50", "40"},
	{"50", "200", "30"},
	{"200", "", "20"},
}

// Config contains the values required by startup seed.
type Config struct {
	DefaultDestination string
	DestinationName    string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run seeds the reference rows the engine needs to quote the fallback destination. It is idempotent.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	code := strings.ToUpper(strings.TrimSpace(cfg.DefaultDestination))
	if code == "" {
		code = defaultDestinationCode
	}
	name := strings.TrimSpace(cfg.DestinationName)
	if name == "" {
		name = defaultDestinationName
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureMarginRanges(ctx, tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDestination(ctx, tx, code, name, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDirectRoute(ctx, tx, code, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureCategoryRate(ctx, tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMarginRanges(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM margin_ranges LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check margin ranges existence: %w", err)
	}
	if exists {
		return nil
	}

	for i, band := range defaultMarginBands {
		var maxCost any
		if band.max != "" {
			maxCost = band.max
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO margin_ranges (id, min_cost, max_cost, margin_percent, is_active, sort_order)
			VALUES (?, ?, ?, ?, TRUE, ?)
		`, uuid.NewString(), band.min, maxCost, band.percent, i+1); err != nil {
			return fmt.Errorf("insert margin range %s-%s: %w", band.min, band.max, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureDestination(ctx context.Context, tx *sql.Tx, code, name string, stats *Stats) error {
	var active sql.NullBool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM destinations WHERE country_code = ?`, code).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO destinations (country_code, name, is_active)
			VALUES (?, ?, TRUE)
		`, code, name); err != nil {
			return fmt.Errorf("insert destination %s: %w", code, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check destination %s: %w", code, err)
	}

	if active.Valid && active.Bool {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE destinations SET is_active = TRUE WHERE country_code = ?`, code); err != nil {
		return fmt.Errorf("reactivate destination %s: %w", code, err)
	}
	stats.Updates++
	return nil
}

func ensureDirectRoute(ctx context.Context, tx *sql.Tx, code string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM shipping_routes
			WHERE UPPER(destination_country_code) = ? AND is_active = TRUE
			LIMIT 1
		)
	`, code).Scan(&exists); err != nil {
		return fmt.Errorf("check route existence for %s: %w", code, err)
	}
	if exists {
		return nil
	}

	routeID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shipping_routes (id, destination_country_code, transit_hub_id, is_direct, is_active)
		VALUES (?, ?, NULL, TRUE, TRUE)
	`, routeID, code); err != nil {
		return fmt.Errorf("insert direct route for %s: %w", code, err)
	}
	stats.Inserts++

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO route_segments (
			id,
			route_id,
			position,
			segment,
			cost_per_kg,
			cost_per_cbm,
			min_cost,
			estimated_days_min,
			estimated_days_max,
			is_active
		)
		VALUES (?, ?, 1, 'direct', ?, ?, ?, ?, ?, TRUE)
	`, uuid.NewString(), routeID, "4.00", "0", "3.00", 7, 21); err != nil {
		return fmt.Errorf("insert direct segment for %s: %w", code, err)
	}
	stats.Inserts++
	return nil
}

func ensureCategoryRate(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM category_shipping_rates WHERE category_id = ? LIMIT 1)`, defaultCategoryID).Scan(&exists); err != nil {
		return fmt.Errorf("check category rate existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO category_shipping_rates (category_id, fixed_fee, percentage_fee, is_active)
		VALUES (?, ?, ?, TRUE)
	`, defaultCategoryID, "0", "0"); err != nil {
		return fmt.Errorf("insert default category rate: %w", err)
	}
	stats.Inserts++
	return nil
}
