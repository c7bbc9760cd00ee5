// Package capture turns trigger signals into captured credential
// attempts. Any of the redundant listener channels may invoke the
// detector; a signal without a usable password value is a logged no-op,
// and duplicate triggers simply overwrite the pending slot.
package capture

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/dom"
	"github.com/hfi/credential-capture-agent/internal/metrics"
	"github.com/hfi/credential-capture-agent/internal/relay"
	"github.com/hfi/credential-capture-agent/internal/signal"
	"github.com/hfi/credential-capture-agent/internal/storage"
	"github.com/hfi/credential-capture-agent/pkg/origin"
)

// Sink receives captured attempts. Implemented by the pending cache.
type Sink interface {
	Set(ctx context.Context, attempt storage.Attempt)
}

// Detector re-runs the selector engine on each trigger signal and forwards
// best-effort extracted credentials to the pending cache.
type Detector struct {
	engine   *dom.Engine
	sink     Sink
	notifier relay.Notifier
	clock    func() time.Time
	log      zerolog.Logger
	trail    audit.Recorder
}

// NewDetector creates a detector feeding the given sink.
func NewDetector(engine *dom.Engine, sink Sink, notifier relay.Notifier, clock func() time.Time, log zerolog.Logger, trail audit.Recorder) *Detector {
	if clock == nil {
		clock = time.Now
	}
	if notifier == nil {
		notifier = relay.Nop{}
	}
	if trail == nil {
		trail = audit.NewNopRecorder()
	}
	return &Detector{
		engine:   engine,
		sink:     sink,
		notifier: notifier,
		clock:    clock,
		log:      log,
		trail:    trail,
	}
}

// HandleSignal processes one trigger. Returns whether an attempt was
// captured.
func (d *Detector) HandleSignal(ctx context.Context, sig signal.Signal) bool {
	doc, err := dom.ParseSnapshot(sig.Snapshot, sig.PageURL)
	if err != nil {
		d.log.Warn().Err(err).Str("kind", string(sig.Kind)).Msg("unparsable snapshot, signal ignored")
		return false
	}

	fields := d.engine.FindCredentialFields(doc)
	if fields.Password == nil {
		metrics.AttemptsDiscardedTotal.Inc()
		d.log.Debug().Str("kind", string(sig.Kind)).Str("url", sig.PageURL).Msg("no password value found, signal ignored")
		return false
	}

	attempt := storage.Attempt{
		Password:   fields.Password.Value,
		URL:        sig.PageURL,
		CapturedAt: d.clock(),
	}
	if fields.Username != nil {
		attempt.Username = fields.Username.Value
	}

	d.sink.Set(ctx, attempt)
	d.notifier.Notify(relay.Message{Type: relay.TypeCacheLoginInfo, Data: attempt})

	metrics.AttemptsCapturedTotal.Inc()
	o, _ := origin.FromURL(attempt.URL)
	d.trail.Record(audit.Event{
		Type:     audit.EventAttemptCaptured,
		Origin:   o,
		Username: attempt.Username,
		Trigger:  string(sig.Kind),
	})
	d.log.Info().Str("kind", string(sig.Kind)).Str("origin", o).Msg("login attempt captured")
	return true
}

// PasswordBlurEligible implements the fifth listener's precondition: a
// blur on the located password field only counts when the enclosing
// form's required inputs are all filled. Password fields outside any form
// are not eligible.
func (d *Detector) PasswordBlurEligible(snapshot, pageURL string) bool {
	doc, err := dom.ParseSnapshot(snapshot, pageURL)
	if err != nil {
		return false
	}
	fields := d.engine.FindCredentialFields(doc)
	if fields.Password == nil {
		return false
	}
	form := dom.ClosestForm(fields.Password.Element)
	if form == nil {
		return false
	}
	return dom.RequiredFilled(form)
}
