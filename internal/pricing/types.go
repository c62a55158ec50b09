package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MarginRange is a factory-cost band with the margin percentage applied to costs inside it.
// A nil MaxCost means the band has no upper bound.
type MarginRange struct {
	ID            string           `json:"id,omitempty"`
	MinCost       decimal.Decimal  `json:"minCost"`
	MaxCost       *decimal.Decimal `json:"maxCost"`
	MarginPercent decimal.Decimal  `json:"marginPercent"`
	IsActive      bool             `json:"isActive"`
	SortOrder     int              `json:"sortOrder"`
}

// SegmentType identifies which leg of a route a segment covers.
type SegmentType string

const (
	SegmentOriginToHub      SegmentType = "origin_to_hub"
	SegmentHubToDestination SegmentType = "hub_to_destination"
	SegmentDirect           SegmentType = "direct"
)

// RouteSegment is one leg of a shipping route.
type RouteSegment struct {
	ID               string          `json:"id,omitempty"`
	Segment          SegmentType     `json:"segment"`
	CostPerKg        decimal.Decimal `json:"costPerKg"`
	CostPerCbm       decimal.Decimal `json:"costPerCbm"`
	MinCost          decimal.Decimal `json:"minCost"`
	EstimatedDaysMin int             `json:"estimatedDaysMin"`
	EstimatedDaysMax int             `json:"estimatedDaysMax"`
	IsActive         bool            `json:"isActive"`
}

// ShippingRoute is a linear chain of segments ending at a destination market.
type ShippingRoute struct {
	ID                     string         `json:"id"`
	DestinationCountryCode string         `json:"destinationCountryCode"`
	DestinationName        string         `json:"destinationName,omitempty"`
	TransitHubID           *string        `json:"transitHubId,omitempty"`
	TransitHubName         string         `json:"transitHubName,omitempty"`
	IsDirect               bool           `json:"isDirect"`
	IsActive               bool           `json:"isActive"`
	Segments               []RouteSegment `json:"segments"`
}

// Name renders a human readable label such as "Shenzhen Hub → Spain".
func (r ShippingRoute) Name() string {
	destination := strings.TrimSpace(r.DestinationName)
	if destination == "" {
		destination = strings.ToUpper(strings.TrimSpace(r.DestinationCountryCode))
	}
	origin := strings.TrimSpace(r.TransitHubName)
	if r.IsDirect || origin == "" {
		origin = "Direct"
	}
	return origin + " → " + destination
}

// CategoryShippingRate holds the handling fees charged for one product category.
type CategoryShippingRate struct {
	CategoryID    string          `json:"categoryId"`
	FixedFee      decimal.Decimal `json:"fixedFee"`
	PercentageFee decimal.Decimal `json:"percentageFee"`
	IsActive      bool            `json:"isActive"`
}

// Product is the calculation input for a single item. Zero WeightKg means DefaultWeightKg.
type Product struct {
	ID                     string          `json:"id"`
	SKU                    string          `json:"sku,omitempty"`
	FactoryCost            decimal.Decimal `json:"factoryCost"`
	CategoryID             string          `json:"categoryId,omitempty"`
	WeightKg               decimal.Decimal `json:"weightKg"`
	DestinationCountryCode string          `json:"destinationCountryCode,omitempty"`
	MOQ                    int             `json:"moq,omitempty"`
	MarketPrice            decimal.Decimal `json:"marketPrice"`
	AdminSuggestedPrice    decimal.Decimal `json:"adminSuggestedPrice"`
}

func (p Product) weight() decimal.Decimal {
	if p.WeightKg.IsPositive() {
		return p.WeightKg
	}
	return DefaultWeightKg
}

// DayRange is an inclusive delivery window in days.
type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Logistics describes the route used for a calculation and what it contributed.
type Logistics struct {
	RouteID       string          `json:"routeId,omitempty"`
	RouteName     string          `json:"routeName,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays DayRange        `json:"estimatedDays"`
	HasRouteData  bool            `json:"hasRouteData"`
}

// PVPSource records where the suggested consumer price came from.
type PVPSource string

const (
	PVPSourceMarket     PVPSource = "market"
	PVPSourceAdmin      PVPSource = "admin"
	PVPSourceCalculated PVPSource = "calculated"
)

// CalculatedPrice is the full breakdown for one product. It is built once per call.
type CalculatedPrice struct {
	ProductID          string          `json:"productId"`
	FactoryCost        decimal.Decimal `json:"factoryCost"`
	MarginRange        *MarginRange    `json:"marginRange"`
	MarginPercent      decimal.Decimal `json:"marginPercent"`
	MarginValue        decimal.Decimal `json:"marginValue"`
	SubtotalWithMargin decimal.Decimal `json:"subtotalWithMargin"`
	LogisticsCost      decimal.Decimal `json:"logisticsCost"`
	CategoryFees       decimal.Decimal `json:"categoryFees"`
	FinalB2BPrice      decimal.Decimal `json:"finalB2bPrice"`
	SuggestedPVP       decimal.Decimal `json:"suggestedPvp"`
	PVPSource          PVPSource       `json:"pvpSource"`
	ProfitAmount       decimal.Decimal `json:"profitAmount"`
	ROIPercent         decimal.Decimal `json:"roiPercent"`
	Logistics          Logistics       `json:"logistics"`
}

// CartLineItem is one line of a shopping cart. Variants of a product share ProductID.
type CartLineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	MOQ       int             `json:"moq,omitempty"`
}

// ReferenceData is the snapshot of reference rows a calculation runs against.
type ReferenceData struct {
	MarginRanges       []MarginRange          `json:"marginRanges"`
	Routes             []ShippingRoute        `json:"routes"`
	CategoryRates      []CategoryShippingRate `json:"categoryRates"`
	DefaultDestination string                 `json:"defaultDestination"`
}
