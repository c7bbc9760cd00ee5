// Package correlate decides whether a pending captured attempt should be
// committed as a confirmed record. Two independent trigger families feed
// one decision path: full-page navigations reported by the coordinator,
// and in-page signals (auth-looking cookies/storage keys, login response
// bodies) for SPA flows that never navigate.
package correlate

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/metrics"
	"github.com/hfi/credential-capture-agent/internal/pending"
	"github.com/hfi/credential-capture-agent/internal/records"
	"github.com/hfi/credential-capture-agent/internal/relay"
	"github.com/hfi/credential-capture-agent/internal/storage"
	"github.com/hfi/credential-capture-agent/pkg/origin"
)

// DefaultWindow is the post-capture window within which a navigation
// confirms the attempt.
const DefaultWindow = 5 * time.Second

// DefaultTokenKeys are the substrings that mark a cookie or web-storage
// key as auth-looking.
var DefaultTokenKeys = []string{"token", "auth", "session"}

// Navigation is a page-navigation-completed event from the coordinator.
type Navigation struct {
	URL     string
	FrameID int
}

// PageState is an in-page probe of auth-bearing state.
type PageState struct {
	Cookies        string
	LocalStorage   map[string]string
	SessionStorage map[string]string
}

// Correlator owns the confirmation decision. Confirmation is guarded by a
// compare-and-swap so concurrent triggers produce exactly one commit: the
// loser of the race either waits out the guard and then observes an empty
// slot, or sees pending == nil directly, and exits silently either way.
type Correlator struct {
	cache    *pending.Cache
	upserter *records.Upserter
	notifier relay.Notifier
	clock    func() time.Time
	window   time.Duration
	tokens   []string
	inFlight atomic.Bool
	log      zerolog.Logger
	trail    audit.Recorder
}

// New creates a correlator over the given cache and upserter.
func New(cache *pending.Cache, upserter *records.Upserter, notifier relay.Notifier, window time.Duration, tokenKeys []string, clock func() time.Time, log zerolog.Logger, trail audit.Recorder) *Correlator {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(tokenKeys) == 0 {
		tokenKeys = DefaultTokenKeys
	}
	if clock == nil {
		clock = time.Now
	}
	if notifier == nil {
		notifier = relay.Nop{}
	}
	if trail == nil {
		trail = audit.NewNopRecorder()
	}
	lowered := make([]string, len(tokenKeys))
	for i, k := range tokenKeys {
		lowered[i] = strings.ToLower(k)
	}
	return &Correlator{
		cache:    cache,
		upserter: upserter,
		notifier: notifier,
		clock:    clock,
		window:   window,
		tokens:   lowered,
		log:      log,
		trail:    trail,
	}
}

// OnNavigationCompleted handles a navigation trigger. Confirmation
// requires a pending attempt, a top-level frame, an origin match against
// the attempt's page, and an elapsed time under the window. Any condition
// failing makes the trigger a no-op.
func (c *Correlator) OnNavigationCompleted(ctx context.Context, nav Navigation) bool {
	return c.tryConfirm(ctx, "navigation", func(attempt storage.Attempt) bool {
		if nav.FrameID != 0 {
			return false
		}
		if !origin.Same(nav.URL, attempt.URL) {
			return false
		}
		return c.clock().Sub(attempt.CapturedAt) < c.window
	})
}

// OnPageState handles an in-page probe: any cookie or storage key
// containing an auth-looking substring confirms.
func (c *Correlator) OnPageState(ctx context.Context, state PageState) bool {
	if !c.authLooking(state) {
		return false
	}
	return c.tryConfirm(ctx, "page_state", func(storage.Attempt) bool { return true })
}

// OnResponse handles a same-page login response: a 200 whose JSON body
// carries a success flag, a token, or code 200 confirms.
func (c *Correlator) OnResponse(ctx context.Context, status int, body []byte) bool {
	if status != 200 || !successMarker(body) {
		return false
	}
	return c.tryConfirm(ctx, "response", func(storage.Attempt) bool { return true })
}

// CheckPending is the settle hook run after rehydration: with no fresh
// navigation or response available it falls back to the in-page state
// provided by the shim.
func (c *Correlator) CheckPending(ctx context.Context, state PageState) bool {
	return c.OnPageState(ctx, state)
}

func (c *Correlator) authLooking(state PageState) bool {
	cookies := strings.ToLower(state.Cookies)
	for _, token := range c.tokens {
		if strings.Contains(cookies, token) {
			return true
		}
		for key := range state.LocalStorage {
			if strings.Contains(strings.ToLower(key), token) {
				return true
			}
		}
		for key := range state.SessionStorage {
			if strings.Contains(strings.ToLower(key), token) {
				return true
			}
		}
	}
	return false
}

// successMarker reports whether a response body looks like a successful
// login: {"success":true}, a non-empty token, or code 200.
func successMarker(body []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	if ok, _ := payload["success"].(bool); ok {
		return true
	}
	if token, _ := payload["token"].(string); token != "" {
		return true
	}
	if code, ok := payload["code"].(float64); ok && code == 200 {
		return true
	}
	return false
}

// tryConfirm is the single decision function both trigger families call.
// It is idempotent under concurrent firing: the CAS admits one caller at
// a time, and a caller finding no pending attempt (already confirmed,
// expired, or superseded) exits silently.
func (c *Correlator) tryConfirm(ctx context.Context, trigger string, eligible func(storage.Attempt) bool) bool {
	if !c.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer c.inFlight.Store(false)

	attempt := c.cache.Get(ctx)
	if attempt == nil {
		return false
	}
	if !eligible(*attempt) {
		return false
	}

	c.commit(ctx, trigger, *attempt)
	return true
}

// commit upserts the confirmed attempt and clears the pending cache
// unconditionally, persistence failure included. The failure is logged
// and audited but the slot is not retained for retry.
func (c *Correlator) commit(ctx context.Context, trigger string, attempt storage.Attempt) {
	defer c.cache.Clear(ctx)

	now := c.clock()
	o, err := origin.FromURL(attempt.URL)
	if err != nil {
		c.log.Error().Err(err).Str("url", attempt.URL).Msg("confirmed attempt has no derivable origin, dropped")
		return
	}

	rec := storage.Record{
		URL:         attempt.URL,
		Origin:      o,
		Username:    attempt.Username,
		Password:    attempt.Password,
		LastUpdated: now,
	}

	metrics.RecordConfirmation(trigger)
	metrics.ConfirmDuration.Observe(now.Sub(attempt.CapturedAt).Seconds())
	c.trail.Record(audit.Event{
		Type:     audit.EventLoginConfirmed,
		Origin:   o,
		Username: attempt.Username,
		Trigger:  trigger,
	})
	c.log.Info().Str("origin", o).Str("trigger", trigger).Msg("login confirmed")

	count, err := c.upserter.Upsert(ctx, rec)
	if err != nil {
		c.log.Error().Err(err).Str("origin", o).Msg("failed to persist confirmed record")
		return
	}

	c.notifier.Notify(relay.Message{Type: relay.TypeLoginSuccess, Data: attempt})
	c.notifier.Notify(relay.Message{
		Type: relay.TypeUpdateRecords,
		Data: map[string]int{"recordCount": count},
	})
}
