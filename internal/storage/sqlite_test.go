package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteRecordStore {
	t.Helper()

	store, err := NewSQLiteRecordStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecordStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRecordStore_SaveAndLoad(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	records := []Record{
		{URL: "https://a.com/login", Origin: "https://a.com", Username: "alice", Password: "pw1", LastUpdated: now},
		{URL: "https://b.com/login", Origin: "https://b.com", Username: "bob", Password: "pw2", LastUpdated: now},
	}

	if err := store.Save(ctx, records); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(got))
	}
	if got[0].Origin != "https://a.com" || got[1].Origin != "https://b.com" {
		t.Errorf("insertion order lost: %q, %q", got[0].Origin, got[1].Origin)
	}
	if got[1].Username != "bob" || got[1].Password != "pw2" {
		t.Errorf("record round-trip mismatch: %+v", got[1])
	}
}

func TestSQLiteRecordStore_SaveReplacesCollection(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	store.Save(ctx, []Record{
		{URL: "https://a.com", Origin: "https://a.com", Username: "u1", Password: "p1", LastUpdated: time.Now()},
		{URL: "https://b.com", Origin: "https://b.com", Username: "u2", Password: "p2", LastUpdated: time.Now()},
	})
	store.Save(ctx, []Record{
		{URL: "https://c.com", Origin: "https://c.com", Username: "u3", Password: "p3", LastUpdated: time.Now()},
	})

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 1 || got[0].Origin != "https://c.com" {
		t.Errorf("Save() did not replace collection: %+v", got)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSQLiteRecordStore_EmptyLoad(t *testing.T) {
	store := newTestSQLiteStore(t)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() on fresh store returned %d records", len(got))
	}
}
