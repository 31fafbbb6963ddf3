// Package marketdata holds the session-scoped market context: quotes and
// the regime snapshot, each carried with an explicit expiry. The clock is
// injected so freshness decisions replay identically under test; nothing in
// this package reads global time or runs background sweeps.
package marketdata

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/quantfold/internal/domain"
)

// Clock supplies the current instant.
type Clock func() time.Time

// Cached pairs a value with the instant it stops being usable.
type Cached[T any] struct {
	Value  T
	Expiry time.Time
}

// Fresh reports whether the entry is still usable at now.
func (c Cached[T]) Fresh(now time.Time) bool {
	return now.Before(c.Expiry)
}

// Context is the market data surface a pipeline run reads from. It is not
// safe for concurrent use; each run owns its Context.
type Context struct {
	clock    Clock
	quoteTTL time.Duration
	quotes   map[string]Cached[float64]
	snapshot Cached[domain.RegimeSnapshot]
	log      zerolog.Logger
}

// DefaultQuoteTTL bounds how long a stored quote stays usable when the
// caller does not choose a horizon.
const DefaultQuoteTTL = 15 * time.Minute

// NewContext builds an empty Context. A nil clock uses wall time; a
// nonpositive TTL uses DefaultQuoteTTL.
func NewContext(clock Clock, quoteTTL time.Duration) *Context {
	if clock == nil {
		clock = time.Now
	}
	if quoteTTL <= 0 {
		quoteTTL = DefaultQuoteTTL
	}
	return &Context{
		clock:    clock,
		quoteTTL: quoteTTL,
		quotes:   make(map[string]Cached[float64]),
		log:      log.With().Str("component", "marketdata").Logger(),
	}
}

// SetQuote stores one price with the context's TTL.
func (c *Context) SetQuote(symbol string, price float64) {
	c.quotes[symbol] = Cached[float64]{
		Value:  price,
		Expiry: c.clock().Add(c.quoteTTL),
	}
}

// SetQuotes stores a batch of prices, all stamped with the same expiry.
func (c *Context) SetQuotes(prices map[string]float64) {
	expiry := c.clock().Add(c.quoteTTL)
	for symbol, price := range prices {
		c.quotes[symbol] = Cached[float64]{Value: price, Expiry: expiry}
	}
}

// Quote returns a price if present and unexpired.
func (c *Context) Quote(symbol string) (float64, bool) {
	entry, ok := c.quotes[symbol]
	if !ok || !entry.Fresh(c.clock()) {
		return 0, false
	}
	return entry.Value, true
}

// FreshQuotes copies every unexpired quote into the plain map the trade
// generator consumes. Expired entries are omitted, not deleted.
func (c *Context) FreshQuotes() map[string]float64 {
	now := c.clock()
	out := make(map[string]float64, len(c.quotes))
	for symbol, entry := range c.quotes {
		if entry.Fresh(now) {
			out[symbol] = entry.Value
		}
	}
	return out
}

// SetSnapshot stores the regime snapshot with an explicit lifetime. A
// nonpositive ttl uses the context's quote TTL.
func (c *Context) SetSnapshot(snap domain.RegimeSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.quoteTTL
	}
	c.snapshot = Cached[domain.RegimeSnapshot]{
		Value:  snap,
		Expiry: c.clock().Add(ttl),
	}
}

// Snapshot returns the regime snapshot if one was set and it is unexpired.
func (c *Context) Snapshot() (domain.RegimeSnapshot, bool) {
	if !c.snapshot.Fresh(c.clock()) {
		return domain.RegimeSnapshot{}, false
	}
	return c.snapshot.Value, true
}

// ExpireStale drops expired quotes and reports how many were removed. An
// expired snapshot is already invisible through Snapshot; this only compacts
// the quote map.
func (c *Context) ExpireStale() int {
	now := c.clock()
	removed := 0
	for symbol, entry := range c.quotes {
		if !entry.Fresh(now) {
			delete(c.quotes, symbol)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("expired stale quotes")
	}
	return removed
}

// Len reports how many quotes are stored, fresh or not.
func (c *Context) Len() int {
	return len(c.quotes)
}
