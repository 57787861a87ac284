package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metric events passed to a MetricsRecordFunc.
const (
	EventAnchored      = "anchored"
	EventVerified      = "verified"
	EventMismatch      = "mismatch"
	EventNotFound      = "not_found"
	EventSnapshotError = "snapshot_error"
)

// MetricsRecordFunc is an optional callback invoked for every ledger event.
type MetricsRecordFunc func(event string)

// Ledger maps generated addresses to identity records and keeps a Snapshot of
// the mapping up to date. A single mutex serialises every mutation together
// with the snapshot write that follows it.
type Ledger struct {
	mu           sync.RWMutex
	records      map[string]Record
	order        []string
	counter      int
	startCounter int
	encodedSize  int // bytes of the last encoded snapshot

	verifications  atomic.Int64
	lastVerifiedAt atomic.Int64 // unix nanos, 0 when never verified

	snapshot  Snapshot
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
	now       func() time.Time
}

// Open loads the snapshot and returns a ready Ledger. A snapshot that cannot
// be read or decoded is logged and the ledger starts empty.
func Open(ctx context.Context, snap Snapshot, logger *zap.Logger) (*Ledger, error) {
	if snap == nil {
		return nil, fmt.Errorf("ledger: nil snapshot")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Ledger{
		records:  make(map[string]Record),
		counter:  InitialCounter,
		snapshot: snap,
		logger:   logger,
		now:      time.Now,
	}

	entries, err := snap.LoadAll(ctx)
	if err != nil {
		logger.Warn("identity ledger snapshot unreadable, starting empty", zap.Error(err))
		entries = nil
	}
	for _, e := range entries {
		if _, dup := l.records[e.Address]; dup {
			continue
		}
		l.records[e.Address] = e.Record
		l.order = append(l.order, e.Address)
		if n, ok := counterFromAddress(e.Address); ok && n >= l.counter {
			l.counter = n + 1
		}
	}
	l.startCounter = l.counter
	l.encodedSize = encodedSize(l.entriesLocked())

	logger.Info("identity ledger loaded",
		zap.Int("records", len(l.order)),
		zap.Int("counter", l.counter),
	)
	return l, nil
}

// SetMetricsRecord configures the metrics recording callback.
func (l *Ledger) SetMetricsRecord(fn MetricsRecordFunc) {
	l.onMetrics = fn
}

func (l *Ledger) record(event string) {
	if l.onMetrics != nil {
		l.onMetrics(event)
	}
}

// Store anchors fields under a freshly generated address and persists the
// whole ledger before returning. Only ErrInvalidInput is reported; a failed
// snapshot write is logged and the in-memory record is kept.
func (l *Ledger) Store(ctx context.Context, f Fields) (Receipt, error) {
	if err := f.validate(); err != nil {
		return Receipt{}, err
	}

	sig, err := newSignature()
	if err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var address string
	for {
		suffix, err := randomHex(suffixBytes)
		if err != nil {
			return Receipt{}, err
		}
		address = formatAddress(l.counter, suffix)
		l.counter++
		if _, taken := l.records[address]; !taken {
			break
		}
	}

	now := l.now().UTC()
	f.Timestamp = now.UnixMilli()
	rec := Record{
		Fields:           f,
		VerificationHash: Digest(f, address),
		CreatedAt:        now,
		Signature:        sig,
	}
	l.records[address] = rec
	l.order = append(l.order, address)

	l.persistLocked(ctx)
	l.record(EventAnchored)

	l.logger.Info("identity anchored",
		zap.String("address", address),
		zap.String("subject_id", f.SubjectID),
	)

	return Receipt{
		Address:          address,
		VerificationHash: rec.VerificationHash,
		Signature:        sig,
	}, nil
}

// Lookup returns the fields stored under address. ok is false when the
// address is unknown.
func (l *Ledger) Lookup(_ context.Context, address string) (Fields, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[address]
	if !ok {
		return Fields{}, false
	}
	return rec.Fields, true
}

// Verify recomputes the digest of the record at address and compares it with
// presentedHash. Unknown addresses and mismatches are results, not errors.
func (l *Ledger) Verify(_ context.Context, address, presentedHash string) VerifyResult {
	l.mu.RLock()
	rec, ok := l.records[address]
	l.mu.RUnlock()

	l.verifications.Add(1)
	l.lastVerifiedAt.Store(l.now().UnixNano())

	sig, err := newSignature()
	if err != nil {
		l.logger.Warn("generate verification signature", zap.Error(err))
	}

	if !ok {
		l.record(EventNotFound)
		return VerifyResult{Valid: false, Reason: ReasonNotFound, Signature: sig}
	}

	if Digest(rec.Fields, address) != presentedHash {
		l.record(EventMismatch)
		l.logger.Info("identity verification failed",
			zap.String("address", address),
			zap.String("reason", ReasonMismatch),
		)
		return VerifyResult{Valid: false, Reason: ReasonMismatch, Signature: sig}
	}

	l.record(EventVerified)
	fields := rec.Fields
	return VerifyResult{Valid: true, Reason: ReasonVerified, Fields: &fields, Signature: sig}
}

// ClearAll removes every record, resets the counter, and persists the empty
// ledger. Snapshot write failures are logged, not returned.
func (l *Ledger) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := len(l.order)
	l.records = make(map[string]Record)
	l.order = nil
	l.counter = InitialCounter
	l.startCounter = InitialCounter

	l.persistLocked(ctx)
	l.logger.Warn("identity ledger cleared", zap.Int("removed", removed))
	return nil
}

// Stats reports the ledger size and activity since Open.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Count:         len(l.order),
		CounterDelta:  l.counter - l.startCounter,
		ByteSize:      l.encodedSize,
		Verifications: l.verifications.Load(),
	}
	if ns := l.lastVerifiedAt.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastVerifiedAt = &t
	}
	return s
}

// Count returns the number of anchored identities.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Verifications returns how many Verify calls were made since Open.
func (l *Ledger) Verifications() int64 {
	return l.verifications.Load()
}

// Entries returns every record in creation order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entriesLocked()
}

func (l *Ledger) entriesLocked() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, addr := range l.order {
		out = append(out, Entry{Address: addr, Record: l.records[addr]})
	}
	return out
}

// persistLocked writes the full snapshot. Caller must hold l.mu for writing.
func (l *Ledger) persistLocked(ctx context.Context) {
	entries := l.entriesLocked()
	l.encodedSize = encodedSize(entries)
	if err := l.snapshot.SaveAll(ctx, entries); err != nil {
		l.record(EventSnapshotError)
		l.logger.Error("write identity ledger snapshot",
			zap.Int("records", len(l.order)),
			zap.Error(err),
		)
	}
}

func encodedSize(entries []Entry) int {
	data, err := EncodeEntries(entries)
	if err != nil {
		return 0
	}
	return len(data)
}
