package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/pricing-engine/internal/httpx"
	"github.com/Simplici0/pricing-engine/internal/observability"
	"github.com/Simplici0/pricing-engine/internal/pricing"
	"github.com/Simplici0/pricing-engine/internal/refdata"
)

const maxBodyBytes = 1 << 20

type productLookup interface {
	GetProducts(ctx context.Context, ids []string) (map[string]pricing.Product, error)
}

type server struct {
	db       *sql.DB
	products productLookup
	cache    *refdata.Cache
	logger   *zap.Logger
}

func newServer(db *sql.DB, products productLookup, cache *refdata.Cache, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{db: db, products: products, cache: cache, logger: logger}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(observability.RequestLoggerMiddleware(s.logger))
	r.Use(observability.RecoveryMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/margin-ranges/resolve", s.handleResolveMargin)
		r.Post("/routes/cost", s.handleRouteCost)
		r.Post("/category-fees", s.handleCategoryFees)
		r.Post("/prices", s.handlePrice)
		r.Post("/prices/batch", s.handleBatchPrices)
		r.Post("/cart/logistics", s.handleCartLogistics)
		r.Post("/cart/groups", s.handleCartGroups)
		r.Post("/reference/reload", s.handleReload)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		observability.FromContext(r.Context()).Error("database ping failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("unavailable", "database unavailable", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveMarginRequest struct {
	FactoryCost decimal.Decimal `json:"factoryCost"`
}

type resolveMarginResponse struct {
	MarginRange   *pricing.MarginRange `json:"marginRange"`
	MarginPercent decimal.Decimal      `json:"marginPercent"`
	IsDefault     bool                 `json:"isDefault"`
}

func (s *server) handleResolveMargin(w http.ResponseWriter, r *http.Request) {
	var req resolveMarginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	matched, percent := engine.ResolveMargin(req.FactoryCost)
	httpx.WriteJSON(w, http.StatusOK, resolveMarginResponse{
		MarginRange:   matched,
		MarginPercent: percent,
		IsDefault:     matched == nil,
	})
}

type routeCostRequest struct {
	Destination string          `json:"destination"`
	WeightKg    decimal.Decimal `json:"weightKg"`
}

func (s *server) handleRouteCost(w http.ResponseWriter, r *http.Request) {
	var req routeCostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, engine.EstimateLogistics(req.Destination, req.WeightKg))
}

type categoryFeesRequest struct {
	CategoryID  string          `json:"categoryId"`
	FactoryCost decimal.Decimal `json:"factoryCost"`
}

type categoryFeesResponse struct {
	CategoryID   string          `json:"categoryId"`
	CategoryFees decimal.Decimal `json:"categoryFees"`
}

func (s *server) handleCategoryFees(w http.ResponseWriter, r *http.Request) {
	var req categoryFeesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, categoryFeesResponse{
		CategoryID:   req.CategoryID,
		CategoryFees: engine.CategoryFees(req.CategoryID, req.FactoryCost),
	})
}

type priceRequest struct {
	ProductID   string           `json:"productId"`
	Product     *pricing.Product `json:"product"`
	Destination string           `json:"destination"`
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var product pricing.Product
	switch {
	case req.Product != nil:
		product = *req.Product
	case strings.TrimSpace(req.ProductID) != "":
		id := strings.TrimSpace(req.ProductID)
		found, ok := s.lookupProducts(w, r, []string{id})
		if !ok {
			return
		}
		p, exists := found[id]
		if !exists {
			httpx.WriteError(r.Context(), w, httpx.NewError("product_not_found", fmt.Sprintf("product %s not found", id), http.StatusNotFound))
			return
		}
		product = p
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product or productId is required", http.StatusBadRequest))
		return
	}

	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	price, priced := engine.CalculateProductPrice(product, req.Destination)
	if !priced {
		httpx.WriteError(r.Context(), w, httpx.NewError("unpriceable_product", "product has no positive factory cost", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"productId": product.ID}))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, price)
}

type batchPricesRequest struct {
	ProductIDs  []string          `json:"productIds"`
	Products    []pricing.Product `json:"products"`
	Destination string            `json:"destination"`
}

type batchPricesResponse struct {
	Prices   map[string]pricing.CalculatedPrice `json:"prices"`
	Skipped  []string                           `json:"skipped"`
	NotFound []string                           `json:"notFound"`
}

func (s *server) handleBatchPrices(w http.ResponseWriter, r *http.Request) {
	var req batchPricesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	for i, p := range req.Products {
		if strings.TrimSpace(p.ID) == "" {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "every inline product needs an id", http.StatusBadRequest).
				WithDetails(map[string]any{"index": i}))
			return
		}
	}

	products := append([]pricing.Product{}, req.Products...)
	notFound := []string{}
	if len(req.ProductIDs) > 0 {
		found, ok := s.lookupProducts(w, r, req.ProductIDs)
		if !ok {
			return
		}
		for _, id := range req.ProductIDs {
			p, exists := found[id]
			if !exists {
				notFound = append(notFound, id)
				continue
			}
			products = append(products, p)
		}
	}

	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	prices := engine.CalculateBatchPrices(products, req.Destination)

	skipped := []string{}
	listed := make(map[string]bool)
	for _, p := range products {
		if _, priced := prices[p.ID]; priced || listed[p.ID] {
			continue
		}
		listed[p.ID] = true
		skipped = append(skipped, p.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, batchPricesResponse{Prices: prices, Skipped: skipped, NotFound: notFound})
}

type cartRequest struct {
	Items       []pricing.CartLineItem `json:"items"`
	Destination string                 `json:"destination"`
}

func (s *server) handleCartLogistics(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	products, ok := s.lookupProducts(w, r, cartProductIDs(req.Items))
	if !ok {
		return
	}
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, engine.CalculateCartLogistics(req.Items, products, req.Destination))
}

type cartGroupsResponse struct {
	Groups      map[string]pricing.ProductGroup `json:"groups"`
	CanCheckout bool                            `json:"canCheckout"`
	Violations  []pricing.ProductGroup          `json:"violations"`
	Skipped     []string                        `json:"skipped"`
}

func (s *server) handleCartGroups(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	products, ok := s.lookupProducts(w, r, cartProductIDs(req.Items))
	if !ok {
		return
	}
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	groups := engine.AggregateProductGroups(req.Items, products)
	httpx.WriteJSON(w, http.StatusOK, cartGroupsResponse{
		Groups:      groups.Groups,
		CanCheckout: groups.CanCheckout(),
		Violations:  groups.Violations(),
		Skipped:     groups.Skipped,
	})
}

type reloadResponse struct {
	MarginRanges       int    `json:"marginRanges"`
	Routes             int    `json:"routes"`
	CategoryRates      int    `json:"categoryRates"`
	DefaultDestination string `json:"defaultDestination"`
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.cache.Invalidate()
	ref, err := s.cache.Get(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("reference reload failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("reference_unavailable", "reference data could not be loaded", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reloadResponse{
		MarginRanges:       len(ref.MarginRanges),
		Routes:             len(ref.Routes),
		CategoryRates:      len(ref.CategoryRates),
		DefaultDestination: ref.DefaultDestination,
	})
}

func (s *server) engine(w http.ResponseWriter, r *http.Request) (*pricing.Engine, bool) {
	engine, err := s.cache.Engine(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("reference data unavailable", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("reference_unavailable", "reference data could not be loaded", http.StatusServiceUnavailable))
		return nil, false
	}
	return engine, true
}

func (s *server) lookupProducts(w http.ResponseWriter, r *http.Request, ids []string) (map[string]pricing.Product, bool) {
	products, err := s.products.GetProducts(r.Context(), ids)
	if err != nil {
		observability.FromContext(r.Context()).Error("product lookup failed", zap.Error(err), zap.Int("ids", len(ids)))
		httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "failed to load products", http.StatusInternalServerError))
		return nil, false
	}
	return products, true
}

func cartProductIDs(items []pricing.CartLineItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", msg, http.StatusBadRequest).
			WithDetails(map[string]any{"reason": err.Error()}))
		return false
	}
	return true
}
