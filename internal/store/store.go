package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricing-engine/internal/pricing"
)

// ErrProductNotFound is returned when a product id has no record.
var ErrProductNotFound = errors.New("product not found")

// Store reads reference rows and product records from SQLite.
type Store struct {
	db *sql.DB
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadReferenceData reads the active margin ranges (by sort order), active routes with their segments
// in storage order, and active category rates.
func (s *Store) LoadReferenceData(ctx context.Context) (pricing.ReferenceData, error) {
	ranges, err := s.listMarginRanges(ctx)
	if err != nil {
		return pricing.ReferenceData{}, err
	}
	routes, err := s.listRoutes(ctx)
	if err != nil {
		return pricing.ReferenceData{}, err
	}
	rates, err := s.listCategoryRates(ctx)
	if err != nil {
		return pricing.ReferenceData{}, err
	}
	return pricing.ReferenceData{MarginRanges: ranges, Routes: routes, CategoryRates: rates}, nil
}

func (s *Store) listMarginRanges(ctx context.Context) ([]pricing.MarginRange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, min_cost, max_cost, margin_percent, is_active, sort_order
		FROM margin_ranges
		WHERE is_active = TRUE
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query margin ranges: %w", err)
	}
	defer rows.Close()

	ranges := make([]pricing.MarginRange, 0)
	for rows.Next() {
		var r pricing.MarginRange
		var maxCost decimal.NullDecimal
		if err := rows.Scan(&r.ID, &r.MinCost, &maxCost, &r.MarginPercent, &r.IsActive, &r.SortOrder); err != nil {
			return nil, fmt.Errorf("scan margin range: %w", err)
		}
		if maxCost.Valid {
			v := maxCost.Decimal
			r.MaxCost = &v
		}
		ranges = append(ranges, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate margin ranges: %w", err)
	}

	return ranges, nil
}

func (s *Store) listRoutes(ctx context.Context) ([]pricing.ShippingRoute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.id,
			r.destination_country_code,
			COALESCE(d.name, ''),
			r.transit_hub_id,
			COALESCE(h.name, ''),
			r.is_direct,
			r.is_active
		FROM shipping_routes r
		LEFT JOIN destinations d ON d.country_code = UPPER(r.destination_country_code)
		LEFT JOIN transit_hubs h ON h.id = r.transit_hub_id
		WHERE r.is_active = TRUE
		ORDER BY r.created_at, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query shipping routes: %w", err)
	}
	defer rows.Close()

	routes := make([]pricing.ShippingRoute, 0)
	index := make(map[string]int)
	for rows.Next() {
		var route pricing.ShippingRoute
		var hubID sql.NullString
		if err := rows.Scan(&route.ID, &route.DestinationCountryCode, &route.DestinationName, &hubID, &route.TransitHubName, &route.IsDirect, &route.IsActive); err != nil {
			return nil, fmt.Errorf("scan shipping route: %w", err)
		}
		if hubID.Valid {
			id := hubID.String
			route.TransitHubID = &id
		}
		route.Segments = []pricing.RouteSegment{}
		index[route.ID] = len(routes)
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping routes: %w", err)
	}

	if len(routes) == 0 {
		return routes, nil
	}

	segRows, err := s.db.QueryContext(ctx, `
		SELECT route_id, id, segment, cost_per_kg, cost_per_cbm, min_cost, estimated_days_min, estimated_days_max, is_active
		FROM route_segments
		ORDER BY route_id, position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query route segments: %w", err)
	}
	defer segRows.Close()

	for segRows.Next() {
		var routeID string
		var seg pricing.RouteSegment
		var kind string
		if err := segRows.Scan(&routeID, &seg.ID, &kind, &seg.CostPerKg, &seg.CostPerCbm, &seg.MinCost, &seg.EstimatedDaysMin, &seg.EstimatedDaysMax, &seg.IsActive); err != nil {
			return nil, fmt.Errorf("scan route segment: %w", err)
		}
		seg.Segment = pricing.SegmentType(kind)
		i, ok := index[routeID]
		if !ok {
			continue
		}
		routes[i].Segments = append(routes[i].Segments, seg)
	}
	if err := segRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate route segments: %w", err)
	}

	return routes, nil
}

func (s *Store) listCategoryRates(ctx context.Context) ([]pricing.CategoryShippingRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, fixed_fee, percentage_fee, is_active
		FROM category_shipping_rates
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query category shipping rates: %w", err)
	}
	defer rows.Close()

	rates := make([]pricing.CategoryShippingRate, 0)
	for rows.Next() {
		var rate pricing.CategoryShippingRate
		if err := rows.Scan(&rate.CategoryID, &rate.FixedFee, &rate.PercentageFee, &rate.IsActive); err != nil {
			return nil, fmt.Errorf("scan category shipping rate: %w", err)
		}
		rates = append(rates, rate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category shipping rates: %w", err)
	}

	return rates, nil
}

const productColumns = `
	id,
	COALESCE(sku, ''),
	factory_cost,
	COALESCE(category_id, ''),
	weight_kg,
	COALESCE(destination_country_code, ''),
	moq,
	market_price,
	admin_suggested_price
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (pricing.Product, error) {
	var p pricing.Product
	var factoryCost, weight, market, admin decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.SKU, &factoryCost, &p.CategoryID, &weight, &p.DestinationCountryCode, &p.MOQ, &market, &admin); err != nil {
		return pricing.Product{}, err
	}
	p.FactoryCost = factoryCost.Decimal
	p.WeightKg = weight.Decimal
	p.MarketPrice = market.Decimal
	p.AdminSuggestedPrice = admin.Decimal
	return p, nil
}

// GetProduct loads one product record.
func (s *Store) GetProduct(ctx context.Context, id string) (pricing.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return pricing.Product{}, fmt.Errorf("query product %s: %w", id, err)
	}
	return p, nil
}

// GetProducts loads the records for ids. Unknown ids are absent from the result.
func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]pricing.Product, error) {
	out := make(map[string]pricing.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return out, nil
}
