package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"caixinhas/internal/cache"
	"caixinhas/internal/projection"
)

const cacheKey = "rates:current"

// Cached keeps the rates of an upstream Source in a cache.Store for a TTL.
// Concurrent misses share one upstream call, which is detached from the
// cancellation of the caller that started it and bounded by FetchTimeout.
type Cached struct {
	src   Source
	store cache.Store
	ttl   time.Duration
	group singleflight.Group

	// FetchTimeout bounds one shared upstream call.
	FetchTimeout time.Duration
}

// DefaultFetchTimeout is the FetchTimeout of a new Cached.
const DefaultFetchTimeout = 30 * time.Second

func NewCached(src Source, store cache.Store, ttl time.Duration) *Cached {
	return &Cached{src: src, store: store, ttl: ttl, FetchTimeout: DefaultFetchTimeout}
}

func (c *Cached) Name() string { return c.src.Name() }

func (c *Cached) Current(ctx context.Context) (projection.Rates, error) {
	if r, ok := c.lookup(ctx); ok {
		return r, nil
	}

	return c.flight(ctx, func(fctx context.Context) (projection.Rates, error) {
		// another flight may have filled the cache while we waited for the lock
		if r, ok := c.lookup(fctx); ok {
			return r, nil
		}
		return c.fetch(fctx)
	})
}

// Refresh bypasses the cache, fetches from upstream and stores the result.
func (c *Cached) Refresh(ctx context.Context) (projection.Rates, error) {
	return c.flight(ctx, c.fetch)
}

// flight runs fn once for all concurrent callers. A caller whose ctx ends
// stops waiting; the shared call keeps running for the others.
func (c *Cached) flight(ctx context.Context, fn func(context.Context) (projection.Rates, error)) (projection.Rates, error) {
	ch := c.group.DoChan(cacheKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.FetchTimeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return projection.Rates{}, res.Err
		}
		return res.Val.(projection.Rates), nil
	case <-ctx.Done():
		return projection.Rates{}, fmt.Errorf("%w: %w", projection.ErrRateUnavailable, ctx.Err())
	}
}

func (c *Cached) fetch(ctx context.Context) (projection.Rates, error) {
	r, err := c.src.Current(ctx)
	if err != nil {
		if !errors.Is(err, projection.ErrRateUnavailable) {
			err = fmt.Errorf("%w: %w", projection.ErrRateUnavailable, err)
		}
		return projection.Rates{}, err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return projection.Rates{}, fmt.Errorf("encode rates: %w", err)
	}
	if err := c.store.Set(ctx, cacheKey, string(data), c.ttl); err != nil {
		slog.WarnContext(ctx, "Failed to cache reference rates", "source", c.src.Name(), "error", err)
	}
	return r, nil
}

func (c *Cached) lookup(ctx context.Context) (projection.Rates, bool) {
	raw, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		slog.WarnContext(ctx, "Rate cache read failed", "error", err)
		return projection.Rates{}, false
	}
	if !ok {
		return projection.Rates{}, false
	}
	var r projection.Rates
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable cached rates", "error", err)
		return projection.Rates{}, false
	}
	return r, true
}
