// Package relay broadcasts pipeline events to other surfaces (admin UI,
// popup shim). Delivery is fire-and-forget: a missing or slow listener is
// never an error and never blocks the pipeline.
package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/metrics"
)

// MessageType identifies the broadcast message kind. The values are the
// wire types the extension surfaces already understand.
type MessageType string

const (
	// TypeCacheLoginInfo announces a freshly captured (unconfirmed) attempt.
	TypeCacheLoginInfo MessageType = "CACHE_LOGIN_INFO"
	// TypeLoginSuccess announces a confirmed login.
	TypeLoginSuccess MessageType = "LOGIN_SUCCESS"
	// TypeUpdateRecords announces a change to the record collection.
	TypeUpdateRecords MessageType = "UPDATE_RECORDS"
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// Notifier delivers messages to whoever is listening.
type Notifier interface {
	Notify(msg Message)
}

// Broadcast fans messages out to subscriber channels. Sends are
// non-blocking: a subscriber that cannot keep up misses messages rather
// than stalling the caller.
type Broadcast struct {
	mu   sync.RWMutex
	subs map[chan Message]struct{}
	log  zerolog.Logger
}

// NewBroadcast creates an empty broadcast relay.
func NewBroadcast(log zerolog.Logger) *Broadcast {
	return &Broadcast{
		subs: make(map[chan Message]struct{}),
		log:  log,
	}
}

// Subscribe registers a listener and returns its channel plus an
// unsubscribe func.
func (b *Broadcast) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// Notify delivers msg to every subscriber. No subscribers, or a full
// subscriber buffer, is swallowed silently apart from a counter and a
// debug line.
func (b *Broadcast) Notify(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subs) == 0 {
		metrics.NotifyDroppedTotal.Inc()
		b.log.Debug().Str("type", string(msg.Type)).Msg("relay message had no listener")
		return
	}

	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			metrics.NotifyDroppedTotal.Inc()
			b.log.Debug().Str("type", string(msg.Type)).Msg("relay subscriber buffer full, message dropped")
		}
	}
}

// Nop is a Notifier that discards everything.
type Nop struct{}

// Notify does nothing
func (Nop) Notify(_ Message) {}
