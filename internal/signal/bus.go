package signal

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/metrics"
)

// DefaultDebounce is the window within which signals carrying identical
// page content are treated as one trigger.
const DefaultDebounce = 500 * time.Millisecond

// Bus fans the listener channels into one consumer. Publishing never
// blocks: when the buffer is full the signal is dropped and counted, which
// is acceptable because the triggers are redundant by design.
type Bus struct {
	ch       chan Signal
	debounce time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	lastHash uint64
	lastAt   time.Time
	closed   bool
}

// NewBus creates a bus with the given buffer size and debounce window.
// Zero values fall back to a 64-slot buffer and DefaultDebounce.
func NewBus(buffer int, debounce time.Duration, log zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Bus{
		ch:       make(chan Signal, buffer),
		debounce: debounce,
		log:      log,
	}
}

// Publish offers a signal to the consumer. Returns false when the signal
// was suppressed as a duplicate or dropped on a full buffer.
func (b *Bus) Publish(s Signal) bool {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	h := contentHash(s)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if h == b.lastHash && s.At.Sub(b.lastAt) < b.debounce {
		b.mu.Unlock()
		metrics.SignalsSuppressedTotal.Inc()
		b.log.Debug().Str("kind", string(s.Kind)).Msg("duplicate signal suppressed")
		return false
	}

	// Commit the debounce state only on delivery: a signal dropped on a
	// full buffer must not suppress its own retry.
	select {
	case b.ch <- s:
		b.lastHash = h
		b.lastAt = s.At
		b.mu.Unlock()
		metrics.RecordSignal(string(s.Kind))
		return true
	default:
		b.mu.Unlock()
		metrics.SignalsDroppedTotal.Inc()
		b.log.Warn().Str("kind", string(s.Kind)).Msg("signal bus full, trigger dropped")
		return false
	}
}

// Signals returns the consumer side of the bus.
func (b *Bus) Signals() <-chan Signal {
	return b.ch
}

// Close stops the bus. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// contentHash hashes what the signal observed, not which channel observed
// it, so the same login attempt reported by several listeners collapses
// into one trigger.
func contentHash(s Signal) uint64 {
	d := xxhash.New()
	d.WriteString(s.PageURL)
	d.WriteString("\x00")
	d.WriteString(s.Snapshot)
	return d.Sum64()
}
