// Package storage defines the persisted state of the capture agent: the
// record collection keyed by origin and the single transient slot holding
// an in-flight captured attempt.
package storage

import (
	"context"
	"time"
)

// Record is a confirmed login record. Origin is derived from URL at commit
// time and is the dedup key: the collection holds at most one Record per
// distinct origin.
type Record struct {
	URL         string    `json:"url"`
	Origin      string    `json:"origin"`
	Username    string    `json:"username"`
	Password    string    `json:"password"` //#nosec G117 -- storing captured credentials is the point of this agent
	LastUpdated time.Time `json:"last_updated"`
}

// Attempt is a captured but unconfirmed credential candidate. Username may
// be empty; Password is always non-empty (the detector discards attempts
// without one).
type Attempt struct {
	Username   string    `json:"username"`
	Password   string    `json:"password"` //#nosec G117
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// RecordStore persists the record collection as a whole. Load returns
// records in insertion order; Save replaces the entire collection in a
// single write. Concurrent savers race at the storage level (last write
// wins), an accepted risk for single-user usage.
type RecordStore interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// TempSlot persists at most one Attempt across page reloads, so an attempt
// captured just before a navigation survives until correlation picks it up.
type TempSlot interface {
	Save(ctx context.Context, attempt Attempt) error
	Load(ctx context.Context) (Attempt, bool, error)
	Delete(ctx context.Context) error
	Close() error
}
