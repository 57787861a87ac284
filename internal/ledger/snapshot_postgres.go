package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// snapshotLockKey serialises SaveAll across service instances sharing a database.
const snapshotLockKey = int64(1_230_481_007)

var ledgerColumns = []string{
	"seq", "address", "full_name", "subject_id", "national_id",
	"captured_at_ms", "verification_hash", "created_at", "signature",
}

// PostgresSnapshot persists the ledger to the identity_ledger table.
type PostgresSnapshot struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSnapshot creates a PostgresSnapshot backed by the given pool.
func NewPostgresSnapshot(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSnapshot {
	return &PostgresSnapshot{pool: pool, logger: logger}
}

// LoadAll implements Snapshot.
func (s *PostgresSnapshot) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, full_name, subject_id, national_id, captured_at_ms,
		        verification_hash, created_at, signature
		 FROM identity_ledger ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query identity ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Address, &e.Record.Fields.FullName, &e.Record.Fields.SubjectID,
			&e.Record.Fields.NationalID, &e.Record.Fields.Timestamp,
			&e.Record.VerificationHash, &e.Record.CreatedAt, &e.Record.Signature,
		); err != nil {
			return nil, fmt.Errorf("scan identity ledger row: %w", err)
		}
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveAll implements Snapshot. The table is replaced inside one transaction,
// so concurrent readers see either the old or the new snapshot.
func (s *PostgresSnapshot) SaveAll(ctx context.Context, entries []Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", snapshotLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM identity_ledger"); err != nil {
		return fmt.Errorf("clear identity ledger: %w", err)
	}

	rows := make([][]any, 0, len(entries))
	for i, e := range entries {
		f := e.Record.Fields
		rows = append(rows, []any{
			i, e.Address, f.FullName, f.SubjectID, f.NationalID,
			f.Timestamp, e.Record.VerificationHash, e.Record.CreatedAt, e.Record.Signature,
		})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"identity_ledger"}, ledgerColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy identity ledger rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit identity ledger tx: %w", err)
	}

	s.logger.Debug("identity ledger snapshot written", zap.Int("entries", len(entries)))
	return nil
}
