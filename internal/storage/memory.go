package storage

import (
	"context"
	"sync"
)

// MemoryRecordStore is an in-memory implementation of RecordStore.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{}
}

// Load returns a copy of the current collection in insertion order.
func (m *MemoryRecordStore) Load(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Save replaces the entire collection.
func (m *MemoryRecordStore) Save(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make([]Record, len(records))
	copy(m.records, records)
	return nil
}

// Count returns the number of stored records.
func (m *MemoryRecordStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close releases resources. No-op for the memory store.
func (m *MemoryRecordStore) Close() error {
	return nil
}

// MemoryTempSlot is an in-memory implementation of TempSlot. It does not
// survive process restarts; deployments that need cross-restart rehydration
// pair the agent with the Redis slot.
type MemoryTempSlot struct {
	mu      sync.Mutex
	attempt Attempt
	full    bool
}

// NewMemoryTempSlot creates a new in-memory temp slot.
func NewMemoryTempSlot() *MemoryTempSlot {
	return &MemoryTempSlot{}
}

// Save stores the attempt, overwriting any previous one.
func (m *MemoryTempSlot) Save(_ context.Context, attempt Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt = attempt
	m.full = true
	return nil
}

// Load returns the stored attempt, if any.
func (m *MemoryTempSlot) Load(_ context.Context) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt, m.full, nil
}

// Delete empties the slot.
func (m *MemoryTempSlot) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt = Attempt{}
	m.full = false
	return nil
}

// Close releases resources. No-op for the memory slot.
func (m *MemoryTempSlot) Close() error {
	return nil
}
