package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/storage"
)

func newTestUpserter(t *testing.T) (*Upserter, *storage.MemoryRecordStore) {
	t.Helper()
	store := storage.NewMemoryRecordStore()
	t.Cleanup(func() { store.Close() })
	return NewUpserter(store, zerolog.Nop(), nil), store
}

func record(url, username, password string) storage.Record {
	return storage.Record{
		URL:         url,
		Username:    username,
		Password:    password,
		LastUpdated: time.Now(),
	}
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	u, store := newTestUpserter(t)
	ctx := context.Background()

	n, err := u.Upsert(ctx, record("https://ex.com/login", "bob", "pw1"))
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Upsert() count = %d, want 1", n)
	}

	// Same origin, different path: replaces, does not append.
	n, err = u.Upsert(ctx, record("https://ex.com/settings", "bob2", "pw2"))
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Upsert() count = %d, want 1 after same-origin update", n)
	}

	got, _ := store.Load(ctx)
	if len(got) != 1 {
		t.Fatalf("store holds %d records, want 1", len(got))
	}
	if got[0].Username != "bob2" || got[0].Password != "pw2" {
		t.Errorf("record not replaced entirely: %+v", got[0])
	}
}

func TestUpsert_OriginDedup(t *testing.T) {
	u, store := newTestUpserter(t)
	ctx := context.Background()

	u.Upsert(ctx, record("https://a.com/login", "u1", "p1"))
	u.Upsert(ctx, record("https://a.com/account", "u2", "p2"))

	got, _ := store.Load(ctx)
	if len(got) != 1 {
		t.Fatalf("two paths on one origin produced %d records, want 1", len(got))
	}
}

func TestUpsert_DistinctOriginsAppendInOrder(t *testing.T) {
	u, store := newTestUpserter(t)
	ctx := context.Background()

	u.Upsert(ctx, record("https://a.com/login", "u1", "p1"))
	u.Upsert(ctx, record("https://b.com/login", "u2", "p2"))
	u.Upsert(ctx, record("https://a.com:8443/login", "u3", "p3")) // different port, different origin

	got, _ := store.Load(ctx)
	if len(got) != 3 {
		t.Fatalf("store holds %d records, want 3", len(got))
	}
	wantOrigins := []string{"https://a.com", "https://b.com", "https://a.com:8443"}
	for i, want := range wantOrigins {
		if got[i].Origin != want {
			t.Errorf("record %d origin = %q, want %q", i, got[i].Origin, want)
		}
	}
}

func TestUpsert_UpdateKeepsPosition(t *testing.T) {
	u, store := newTestUpserter(t)
	ctx := context.Background()

	u.Upsert(ctx, record("https://a.com/login", "u1", "p1"))
	u.Upsert(ctx, record("https://b.com/login", "u2", "p2"))
	u.Upsert(ctx, record("https://a.com/login", "u1-new", "p1-new"))

	got, _ := store.Load(ctx)
	if got[0].Origin != "https://a.com" || got[0].Username != "u1-new" {
		t.Errorf("updated record moved or kept stale fields: %+v", got[0])
	}
}

func TestUpsert_MalformedStoredURLNeverMatches(t *testing.T) {
	u, store := newTestUpserter(t)
	ctx := context.Background()

	// A stored record with a broken URL and no origin must be skipped, not
	// matched and not crash the scan.
	store.Save(ctx, []storage.Record{{URL: "::not a url::", Username: "old", Password: "old"}})

	n, err := u.Upsert(ctx, record("https://ex.com/login", "bob", "pw"))
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Upsert() count = %d, want 2 (malformed entry untouched)", n)
	}
}

func TestUpsert_NoDerivableOrigin(t *testing.T) {
	u, _ := newTestUpserter(t)

	_, err := u.Upsert(context.Background(), record("not-a-url", "bob", "pw"))
	if err == nil {
		t.Error("Upsert() accepted a record with no derivable origin")
	}
}

type failingStore struct {
	storage.RecordStore
	saveErr error
}

func (f *failingStore) Load(_ context.Context) ([]storage.Record, error) { return nil, nil }
func (f *failingStore) Save(_ context.Context, _ []storage.Record) error { return f.saveErr }

func TestUpsert_SaveFailureSurfacesError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	u := NewUpserter(&failingStore{saveErr: wantErr}, zerolog.Nop(), nil)

	_, err := u.Upsert(context.Background(), record("https://ex.com/login", "bob", "pw"))
	if !errors.Is(err, wantErr) {
		t.Errorf("Upsert() error = %v, want wrapped %v", err, wantErr)
	}
}
