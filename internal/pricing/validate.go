package pricing

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

var (
	ErrOverlappingMarginRanges = errors.New("active margin ranges overlap")
	ErrInvalidMarginRange      = errors.New("invalid margin range")
	ErrDuplicateActiveRoute    = errors.New("multiple active routes for destination")
	ErrInvalidRouteSegment     = errors.New("invalid route segment")
	ErrDuplicateCategoryRate   = errors.New("multiple active rates for category")
)

// ValidateReferenceData reports integrity problems in a snapshot. Calculations still run on data
// that fails validation (first match wins everywhere), so callers log the result instead of failing.
func ValidateReferenceData(ref ReferenceData) error {
	return multierr.Combine(
		validateMarginRanges(ref.MarginRanges),
		validateRoutes(ref.Routes),
		validateCategoryRates(ref.CategoryRates),
	)
}

func validateMarginRanges(ranges []MarginRange) error {
	var errs error
	active := make([]MarginRange, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsActive {
			continue
		}
		if r.MinCost.IsNegative() || r.MarginPercent.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("%w: range %q has negative values", ErrInvalidMarginRange, r.ID))
		}
		if r.MaxCost != nil && !r.MaxCost.GreaterThan(r.MinCost) {
			errs = multierr.Append(errs, fmt.Errorf("%w: range %q max %s not above min %s", ErrInvalidMarginRange, r.ID, r.MaxCost, r.MinCost))
		}
		active = append(active, r)
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].MinCost.LessThan(active[j].MinCost) })
	for i := 1; i < len(active); i++ {
		prev, cur := active[i-1], active[i]
		if prev.MaxCost == nil || cur.MinCost.LessThan(*prev.MaxCost) {
			errs = multierr.Append(errs, fmt.Errorf("%w: %q and %q", ErrOverlappingMarginRanges, prev.ID, cur.ID))
		}
	}
	return errs
}

func validateRoutes(routes []ShippingRoute) error {
	var errs error
	seen := make(map[string]string)
	for _, route := range routes {
		if !route.IsActive {
			continue
		}
		code := normalizeCountryCode(route.DestinationCountryCode)
		if first, ok := seen[code]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%w %s: %q shadows %q", ErrDuplicateActiveRoute, code, route.ID, first))
		} else {
			seen[code] = route.ID
		}
		for _, segment := range route.Segments {
			if !segment.IsActive {
				continue
			}
			if segment.EstimatedDaysMin > segment.EstimatedDaysMax {
				errs = multierr.Append(errs, fmt.Errorf("%w: route %q segment %q days min %d > max %d",
					ErrInvalidRouteSegment, route.ID, segment.ID, segment.EstimatedDaysMin, segment.EstimatedDaysMax))
			}
			if segment.CostPerKg.IsNegative() || segment.MinCost.IsNegative() {
				errs = multierr.Append(errs, fmt.Errorf("%w: route %q segment %q has negative cost", ErrInvalidRouteSegment, route.ID, segment.ID))
			}
		}
	}
	return errs
}

func validateCategoryRates(rates []CategoryShippingRate) error {
	var errs error
	seen := make(map[string]bool)
	for _, rate := range rates {
		if !rate.IsActive {
			continue
		}
		if seen[rate.CategoryID] {
			errs = multierr.Append(errs, fmt.Errorf("%w %q", ErrDuplicateCategoryRate, rate.CategoryID))
		}
		seen[rate.CategoryID] = true
	}
	return errs
}
