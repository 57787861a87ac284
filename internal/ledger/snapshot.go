package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrCorruptSnapshot is returned by LoadAll when persisted data cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt ledger snapshot")

// Snapshot is the durable representation of the whole ledger.
// SaveAll replaces everything previously saved; LoadAll returns entries in
// creation order. A snapshot that was never written loads as empty.
type Snapshot interface {
	LoadAll(ctx context.Context) ([]Entry, error)
	SaveAll(ctx context.Context, entries []Entry) error
}

// EncodeEntries serialises entries as a JSON array of [address, record] pairs.
func EncodeEntries(entries []Entry) ([]byte, error) {
	pairs := make([][2]any, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, [2]any{e.Address, e.Record})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeEntries parses the output of EncodeEntries.
func DecodeEntries(data []byte) ([]Entry, error) {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	entries := make([]Entry, 0, len(pairs))
	for i, p := range pairs {
		var e Entry
		if err := json.Unmarshal(p[0], &e.Address); err != nil || e.Address == "" {
			return nil, fmt.Errorf("%w: pair %d has no address", ErrCorruptSnapshot, i)
		}
		if err := json.Unmarshal(p[1], &e.Record); err != nil {
			return nil, fmt.Errorf("%w: pair %d: %v", ErrCorruptSnapshot, i, err)
		}
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// checkEntry rejects records Store could never have produced, such as a
// null record or one with a blank identity field.
func checkEntry(e Entry) error {
	if err := e.Record.Fields.validate(); err != nil {
		return fmt.Errorf("%w: %s has incomplete identity data", ErrCorruptSnapshot, e.Address)
	}
	if e.Record.VerificationHash == "" {
		return fmt.Errorf("%w: %s has no verification hash", ErrCorruptSnapshot, e.Address)
	}
	return nil
}

// MemorySnapshot keeps the encoded snapshot in process memory.
type MemorySnapshot struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemorySnapshot returns an empty MemorySnapshot.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{}
}

// LoadAll implements Snapshot.
func (m *MemorySnapshot) LoadAll(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return DecodeEntries(m.data)
}

// SaveAll implements Snapshot.
func (m *MemorySnapshot) SaveAll(_ context.Context, entries []Entry) error {
	data, err := EncodeEntries(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Bytes returns the last saved encoding.
func (m *MemorySnapshot) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Saves returns how many times SaveAll succeeded.
func (m *MemorySnapshot) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
