// Package pending holds the most recent captured attempt while it waits
// for a success signal. The cache is a single slot: newer attempts
// overwrite older ones, and an attempt leaves the slot by being confirmed,
// expired, or superseded.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/metrics"
	"github.com/hfi/credential-capture-agent/internal/storage"
	"github.com/hfi/credential-capture-agent/pkg/origin"
)

// DefaultTTL is how long an unconfirmed attempt stays eligible.
const DefaultTTL = 5 * time.Minute

// DefaultSettleDelay is how long rehydration waits before running the
// correlation check, giving the freshly loaded page time to settle.
const DefaultSettleDelay = time.Second

// Clock supplies the current time; injectable for deterministic expiry
// tests.
type Clock func() time.Time

// Cache is the single-slot pending-attempt store. Set mirrors the attempt
// to a persisted temp slot so it survives a page unload; expiry runs both
// on a timer and lazily on access.
type Cache struct {
	mu    sync.Mutex
	slot  *storage.Attempt
	timer *time.Timer
	gen   uint64

	clock Clock
	ttl   time.Duration
	temp  storage.TempSlot
	log   zerolog.Logger
	trail audit.Recorder
}

// New creates a cache backed by the given temp slot.
func New(temp storage.TempSlot, ttl time.Duration, clock Clock, log zerolog.Logger, trail audit.Recorder) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	if trail == nil {
		trail = audit.NewNopRecorder()
	}
	return &Cache{
		clock: clock,
		ttl:   ttl,
		temp:  temp,
		log:   log,
		trail: trail,
	}
}

// Set stores the attempt, overwriting any pending one, and mirrors it to
// the persisted slot. A mirror failure is logged but does not reject the
// attempt: the in-memory slot still serves same-page correlation.
func (c *Cache) Set(ctx context.Context, attempt storage.Attempt) {
	c.mu.Lock()
	c.slot = &attempt
	c.gen++
	c.armTimerLocked(c.gen, c.ttl)
	c.mu.Unlock()

	if err := c.temp.Save(ctx, attempt); err != nil {
		c.log.Warn().Err(err).Msg("failed to mirror pending attempt to temp slot")
	}
}

// armTimerLocked schedules deterministic expiry for the current slot
// generation after d. An overwrite bumps the generation, so a stale timer
// firing for a superseded attempt is a no-op.
func (c *Cache) armTimerLocked(gen uint64, d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, func() {
		c.expire(gen)
	})
}

func (c *Cache) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.slot == nil {
		c.mu.Unlock()
		return
	}
	expired := *c.slot
	c.slot = nil
	c.mu.Unlock()

	c.dropExpired(expired)
}

func (c *Cache) dropExpired(attempt storage.Attempt) {
	if err := c.temp.Delete(context.Background()); err != nil {
		c.log.Warn().Err(err).Msg("failed to delete expired temp slot")
	}
	metrics.AttemptsExpiredTotal.Inc()
	o, _ := origin.FromURL(attempt.URL)
	c.trail.Record(audit.Event{Type: audit.EventAttemptExpired, Origin: o})
	c.log.Debug().Str("origin", o).Msg("pending attempt expired")
}

// Get returns the pending attempt, or nil when the slot is empty or the
// attempt has outlived the TTL (lazy expiry on access).
func (c *Cache) Get(_ context.Context) *storage.Attempt {
	c.mu.Lock()
	if c.slot == nil {
		c.mu.Unlock()
		return nil
	}
	if c.clock().Sub(c.slot.CapturedAt) > c.ttl {
		expired := *c.slot
		c.slot = nil
		c.gen++
		c.mu.Unlock()
		c.dropExpired(expired)
		return nil
	}
	attempt := *c.slot
	c.mu.Unlock()
	return &attempt
}

// Clear empties both the in-memory slot and the persisted copy.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.slot = nil
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	if err := c.temp.Delete(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear temp slot")
	}
}

// Rehydrate restores the slot from the persisted copy after a restart:
// the temp copy is loaded once, deleted, and onSettled is scheduled after
// the settle delay so the new page context can finish loading before
// correlation runs. Returns whether an attempt was restored.
func (c *Cache) Rehydrate(ctx context.Context, settle time.Duration, onSettled func()) (bool, error) {
	attempt, ok, err := c.temp.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := c.temp.Delete(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to delete temp slot after rehydration")
	}

	// The TTL clock started at capture, not at restart: arm the timer for
	// what is left of it, and drop an attempt that already outlived it.
	remaining := c.ttl - c.clock().Sub(attempt.CapturedAt)
	if remaining <= 0 {
		c.dropExpired(attempt)
		return false, nil
	}

	c.mu.Lock()
	c.slot = &attempt
	c.gen++
	c.armTimerLocked(c.gen, remaining)
	c.mu.Unlock()

	o, _ := origin.FromURL(attempt.URL)
	c.trail.Record(audit.Event{Type: audit.EventCacheRehydrated, Origin: o})
	c.log.Info().Str("origin", o).Msg("pending attempt rehydrated from temp slot")

	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if onSettled != nil {
		time.AfterFunc(settle, onSettled)
	}
	return true, nil
}

// Close stops the expiry timer.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}
