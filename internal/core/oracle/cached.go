package oracle

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/metrics"
)

// Cached remembers the rates of another oracle for a limited time. Errors
// and zero rates are never cached.
type Cached struct {
	next  ledger.RateOracle
	cache *expirable.LRU[Pair, amount.Balance]
}

// NewCached wraps next. A size of zero means unbounded and a ttl of zero
// means entries only leave by eviction.
func NewCached(next ledger.RateOracle, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[Pair, amount.Balance](size, nil, ttl),
	}
}

// Rate implements ledger.RateOracle.
func (c *Cached) Rate(ctx context.Context, tokenIn, tokenOut ledger.TokenID) (amount.Balance, error) {
	p := Pair{In: tokenIn, Out: tokenOut}
	if r, ok := c.cache.Get(p); ok {
		metrics.OracleCacheTotal.WithLabelValues("hit").Inc()
		return r, nil
	}
	metrics.OracleCacheTotal.WithLabelValues("miss").Inc()

	r, err := c.next.Rate(ctx, tokenIn, tokenOut)
	if err != nil || r.IsZero() {
		return r, err
	}
	c.cache.Add(p, r)
	return r, nil
}

// Purge drops every cached rate.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached rates.
func (c *Cached) Len() int {
	return c.cache.Len()
}
