package refdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Simplici0/pricing-engine/internal/pricing"
)

const (
	defaultTTL         = 5 * time.Minute
	defaultLoadTimeout = 30 * time.Second
)

// ErrNoLoader is returned when a Cache is built without a Loader.
var ErrNoLoader = errors.New("refdata: loader is required")

// Loader fetches a fresh reference snapshot from the backing store.
type Loader interface {
	LoadReferenceData(ctx context.Context) (pricing.ReferenceData, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (pricing.ReferenceData, error)

// LoadReferenceData calls f.
func (f LoaderFunc) LoadReferenceData(ctx context.Context) (pricing.ReferenceData, error) {
	return f(ctx)
}

// Cache keeps the last reference snapshot for a TTL. Reference rows change rarely, so a snapshot a few
// minutes old is acceptable; concurrent misses share a single load.
type Cache struct {
	loader             Loader
	ttl                time.Duration
	loadTimeout        time.Duration
	now                func() time.Time
	logger             *zap.Logger
	defaultDestination string

	group singleflight.Group

	mu       sync.RWMutex
	snapshot *pricing.ReferenceData
	expires  time.Time
}

// Deps configures a Cache.
type Deps struct {
	Loader             Loader
	TTL                time.Duration
	// LoadTimeout bounds a shared load; zero means 30 seconds.
	LoadTimeout        time.Duration
	Now                func() time.Time
	Logger             *zap.Logger
	DefaultDestination string
}

// NewCache constructs a Cache. A non-positive TTL defaults to five minutes.
func NewCache(deps Deps) (*Cache, error) {
	if deps.Loader == nil {
		return nil, ErrNoLoader
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	loadTimeout := deps.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		loader:             deps.Loader,
		ttl:                ttl,
		loadTimeout:        loadTimeout,
		now:                now,
		logger:             logger,
		defaultDestination: deps.DefaultDestination,
	}, nil
}

// Get returns a fresh snapshot, loading one when the cached copy expired. When a reload fails but an
// older snapshot exists, the older snapshot is served and the failure logged.
func (c *Cache) Get(ctx context.Context) (pricing.ReferenceData, error) {
	c.mu.RLock()
	snapshot, expires := c.snapshot, c.expires
	c.mu.RUnlock()
	if snapshot != nil && c.now().Before(expires) {
		return *snapshot, nil
	}

	// Shared by every waiter, so it runs detached from the caller's cancellation.
	ch := c.group.DoChan("reference", func() (any, error) {
		c.mu.RLock()
		fresh, until := c.snapshot, c.expires
		c.mu.RUnlock()
		if fresh != nil && c.now().Before(until) {
			return *fresh, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return c.load(loadCtx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		if snapshot != nil {
			return *snapshot, nil
		}
		return pricing.ReferenceData{}, ctx.Err()
	}
	if res.Err != nil {
		if snapshot != nil {
			c.logger.Warn("serving stale reference data", zap.Error(res.Err))
			return *snapshot, nil
		}
		return pricing.ReferenceData{}, res.Err
	}
	return res.Val.(pricing.ReferenceData), nil
}

// Engine returns a pricing engine over the current snapshot.
func (c *Cache) Engine(ctx context.Context) (*pricing.Engine, error) {
	ref, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.NewEngine(pricing.EngineDeps{Reference: ref, Logger: c.logger}), nil
}

// Invalidate drops the cached snapshot so the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.expires = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) load(ctx context.Context) (pricing.ReferenceData, error) {
	ref, err := c.loader.LoadReferenceData(ctx)
	if err != nil {
		return pricing.ReferenceData{}, fmt.Errorf("load reference data: %w", err)
	}
	if ref.DefaultDestination == "" {
		ref.DefaultDestination = c.defaultDestination
	}

	if err := pricing.ValidateReferenceData(ref); err != nil {
		problems := multierr.Errors(err)
		fields := make([]string, 0, len(problems))
		for _, p := range problems {
			fields = append(fields, p.Error())
		}
		c.logger.Warn("reference data integrity problems", zap.Int("count", len(problems)), zap.Strings("problems", fields))
	}

	c.mu.Lock()
	c.snapshot = &ref
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()

	c.logger.Debug("reference data loaded",
		zap.Int("margin_ranges", len(ref.MarginRanges)),
		zap.Int("routes", len(ref.Routes)),
		zap.Int("category_rates", len(ref.CategoryRates)),
	)
	return ref, nil
}
