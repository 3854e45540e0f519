package rsvp

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Records vanish with the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

// GetRSVP returns ErrNotFound when subject has no record.
func (m *MemoryStore) GetRSVP(ctx context.Context, subject string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[subject]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// UpsertRSVP replaces the record for subject.
func (m *MemoryStore) UpsertRSVP(ctx context.Context, subject string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[subject] = record
	return nil
}

// StaticGuests is a fixed, case-insensitive guest list.
type StaticGuests map[string]Guest

// NewStaticGuests indexes guests by lowercased email.
func NewStaticGuests(guests ...Guest) StaticGuests {
	out := make(StaticGuests, len(guests))
	for _, g := range guests {
		key := strings.ToLower(strings.TrimSpace(g.Email))
		g.Email = key
		out[key] = g
	}
	return out
}

// LookupGuest returns ErrNotFound for emails not on the list.
func (g StaticGuests) LookupGuest(_ context.Context, email string) (Guest, error) {
	guest, ok := g[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Guest{}, ErrNotFound
	}
	return guest, nil
}
