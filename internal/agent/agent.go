// Package agent wires the capture pipeline together: selector engine,
// signal bus, capture detector, pending cache, success correlator, record
// upsert and relay. It exposes the inbound surface the ingest API calls.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/capture"
	"github.com/hfi/credential-capture-agent/internal/config"
	"github.com/hfi/credential-capture-agent/internal/correlate"
	"github.com/hfi/credential-capture-agent/internal/dom"
	"github.com/hfi/credential-capture-agent/internal/pending"
	"github.com/hfi/credential-capture-agent/internal/records"
	"github.com/hfi/credential-capture-agent/internal/relay"
	"github.com/hfi/credential-capture-agent/internal/signal"
	"github.com/hfi/credential-capture-agent/internal/storage"
)

// Agent is the running capture pipeline.
type Agent struct {
	bus        *signal.Bus
	detector   *capture.Detector
	cache      *pending.Cache
	correlator *correlate.Correlator
	upserter   *records.Upserter
	observer   *signal.Observer
	loginTerms []string
	settle     time.Duration
	log        zerolog.Logger

	stateMu   sync.Mutex
	lastState correlate.PageState

	wg sync.WaitGroup
}

// New builds an agent from configuration and the already-opened stores.
func New(cfg *config.Config, store storage.RecordStore, temp storage.TempSlot, notifier relay.Notifier, log zerolog.Logger, trail audit.Recorder) (*Agent, error) {
	engine, err := dom.NewEngine(cfg.Capture.PasswordSelectors, cfg.Capture.UsernameSelectors)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = relay.Nop{}
	}
	if trail == nil {
		trail = audit.NewNopRecorder()
	}

	bus := signal.NewBus(cfg.Capture.BusBuffer, cfg.Capture.Debounce, log)
	cache := pending.New(temp, cfg.Correlation.PendingTTL, nil, log, trail)
	upserter := records.NewUpserter(store, log, trail)
	detector := capture.NewDetector(engine, cache, notifier, nil, log, trail)
	correlator := correlate.New(cache, upserter, notifier,
		cfg.Correlation.NavigationWindow, cfg.Correlation.TokenKeys, nil, log, trail)
	observer := signal.NewObserver(bus, signal.NewURLClassifier(cfg.Capture.LoginURLTerms))

	return &Agent{
		bus:        bus,
		detector:   detector,
		cache:      cache,
		correlator: correlator,
		upserter:   upserter,
		observer:   observer,
		loginTerms: cfg.Capture.LoginTerms,
		settle:     cfg.Correlation.SettleDelay,
		log:        log,
	}, nil
}

// Run consumes the signal bus until the context is cancelled or the bus
// is closed. Each drained signal re-runs the detector.
func (a *Agent) Run(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-a.bus.Signals():
				if !ok {
					return
				}
				a.detector.HandleSignal(ctx, sig)
			}
		}
	}()
}

// Rehydrate restores a pending attempt persisted before a page unload and
// schedules a correlation check once the new page has settled.
func (a *Agent) Rehydrate(ctx context.Context) (bool, error) {
	return a.cache.Rehydrate(ctx, a.settle, func() {
		a.stateMu.Lock()
		state := a.lastState
		a.stateMu.Unlock()
		a.correlator.CheckPending(context.Background(), state)
	})
}

// HandleFormSubmit reports a form submission observed in the capturing
// phase.
func (a *Agent) HandleFormSubmit(pageURL, snapshot string) {
	a.bus.Publish(signal.Signal{Kind: signal.FormSubmit, PageURL: pageURL, Snapshot: snapshot})
}

// HandleClick reports a click; only clicks on login-like targets become
// signals.
func (a *Agent) HandleClick(pageURL, snapshot, targetText, targetAria, targetType string) {
	if !dom.LoginLikeTarget(targetText, targetAria, targetType, a.loginTerms) {
		return
	}
	a.bus.Publish(signal.Signal{Kind: signal.LoginClick, PageURL: pageURL, Snapshot: snapshot})
}

// HandleEnterKey reports an Enter keypress; only input/button focus
// counts.
func (a *Agent) HandleEnterKey(pageURL, snapshot, focusTag string) {
	if !dom.SubmitFocusTag(focusTag) {
		return
	}
	a.bus.Publish(signal.Signal{Kind: signal.EnterKey, PageURL: pageURL, Snapshot: snapshot})
}

// HandleRequest reports an outgoing network request through the injected
// observer; login-like URLs become signals, everything else is ignored.
func (a *Agent) HandleRequest(pageURL, requestURL, snapshot string) {
	a.observer.ObserveRequest(pageURL, requestURL, snapshot)
}

// HandleBlur reports a blur on the password field; it becomes a signal
// only when the enclosing form's required inputs are all filled.
func (a *Agent) HandleBlur(pageURL, snapshot string) {
	if !a.detector.PasswordBlurEligible(snapshot, pageURL) {
		return
	}
	a.bus.Publish(signal.Signal{Kind: signal.FieldBlur, PageURL: pageURL, Snapshot: snapshot})
}

// HandleNavigation reports a navigation-completed event.
func (a *Agent) HandleNavigation(ctx context.Context, nav correlate.Navigation) bool {
	return a.correlator.OnNavigationCompleted(ctx, nav)
}

// HandlePageState reports an in-page probe of cookies and web storage.
func (a *Agent) HandlePageState(ctx context.Context, state correlate.PageState) bool {
	a.stateMu.Lock()
	a.lastState = state
	a.stateMu.Unlock()
	return a.correlator.OnPageState(ctx, state)
}

// HandleResponse reports a same-page login response body.
func (a *Agent) HandleResponse(ctx context.Context, status int, body []byte) bool {
	return a.correlator.OnResponse(ctx, status, body)
}

// Close stops the bus and waits for the consumer to drain.
func (a *Agent) Close() {
	a.bus.Close()
	a.wg.Wait()
	a.cache.Close()
}
