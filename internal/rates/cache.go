package rates

import (
	"context"
	"sync"
	"time"

	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "latest"

// CachedProvider serves the last successful snapshot until it expires.
// Failed fetches are never cached. Concurrent misses share one upstream call.
type CachedProvider struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	cached    Rates
	expiresAt time.Time
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, ttl: ttl, now: time.Now}
}

func (c *CachedProvider) FetchRates(ctx context.Context) (Rates, error) {
	if cached, ok := c.fresh(); ok {
		return cached, nil
	}

	// The shared call outlives any single caller, each caller still stops on its own ctx.
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		fresh, err := c.next.FetchRates(context.WithoutCancel(ctx))
		if err != nil {
			return Rates{}, err
		}
		c.mu.Lock()
		c.cached = fresh
		c.expiresAt = c.now().Add(c.ttl)
		c.mu.Unlock()
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Rates{}, res.Err
		}
		return res.Val.(Rates), nil
	case <-ctx.Done():
		logging.Logger.Warnf("[TraceID=%s] | gave up waiting for rates in CachedProvider.FetchRates() | Error: %v", contextutil.TraceIDFromContext(ctx), ctx.Err())
		return Rates{}, errRatesUnavailable
	}
}

func (c *CachedProvider) fresh() (Rates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expiresAt.IsZero() && c.now().Before(c.expiresAt) {
		return c.cached, true
	}
	return Rates{}, false
}

// WithCache wraps p only when ttl is positive.
func WithCache(p Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return p
	}
	return NewCachedProvider(p, ttl)
}
