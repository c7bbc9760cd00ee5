// Package records commits confirmed attempts to the persisted record
// collection, keyed by origin with last-write-wins semantics.
package records

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/metrics"
	"github.com/hfi/credential-capture-agent/internal/storage"
	"github.com/hfi/credential-capture-agent/pkg/origin"
)

// Upserter merges confirmed records into the store. The collection is
// read-modify-written as a whole; failures surface to the caller and are
// never retried here.
type Upserter struct {
	store storage.RecordStore
	log   zerolog.Logger
	trail audit.Recorder
}

// NewUpserter creates an Upserter over the given store.
func NewUpserter(store storage.RecordStore, log zerolog.Logger, trail audit.Recorder) *Upserter {
	if trail == nil {
		trail = audit.NewNopRecorder()
	}
	return &Upserter{store: store, log: log, trail: trail}
}

// Upsert commits rec: an existing record with the same origin is replaced
// entirely, otherwise rec is appended. Malformed URLs on stored records
// never match and never fail the scan. Returns the total record count
// after the write.
func (u *Upserter) Upsert(ctx context.Context, rec storage.Record) (int, error) {
	if rec.Origin == "" {
		o, err := origin.FromURL(rec.URL)
		if err != nil {
			return 0, fmt.Errorf("record has no derivable origin: %w", err)
		}
		rec.Origin = o
	}

	collection, err := u.store.Load(ctx)
	if err != nil {
		metrics.RecordUpsert("error", 0)
		return 0, fmt.Errorf("load records: %w", err)
	}

	outcome := "insert"
	replaced := false
	for i := range collection {
		if u.matchesOrigin(collection[i], rec.Origin) {
			collection[i] = rec
			replaced = true
			outcome = "update"
			break
		}
	}
	if !replaced {
		collection = append(collection, rec)
	}

	if err := u.store.Save(ctx, collection); err != nil {
		metrics.RecordUpsert("error", 0)
		u.trail.Record(audit.Event{Type: audit.EventPersistFailed, Origin: rec.Origin, Error: err.Error()})
		return 0, fmt.Errorf("save records: %w", err)
	}

	total := len(collection)
	metrics.RecordUpsert(outcome, total)
	u.trail.Record(audit.Event{Type: audit.EventRecordUpserted, Origin: rec.Origin, Username: rec.Username, Count: total})
	u.log.Info().Str("origin", rec.Origin).Str("outcome", outcome).Int("total", total).Msg("record upserted")
	return total, nil
}

// matchesOrigin compares a stored record against the target origin,
// preferring the stored Origin field and falling back to deriving one
// from the stored URL. Records carrying neither a usable origin nor a
// parsable URL simply never match.
func (u *Upserter) matchesOrigin(stored storage.Record, target string) bool {
	if stored.Origin != "" {
		return stored.Origin == target
	}
	return origin.Matches(stored.URL, target)
}
