package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no tourist record matches.
var ErrNotFound = errors.New("tourist not found")

const touristColumns = `id, digital_id, user_id, first_name, last_name, date_of_birth, nationality,
	aadhaar_number, gender, profile_image, entry_point, entry_date, expected_exit_date,
	blockchain_address, verification_hash, tx_signature, created_at`

// Repository stores tourists and their emergency contacts in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts the tourist and its emergency contacts in one transaction.
// Sets ID and CreatedAt on t and on each contact.
func (r *Repository) Create(ctx context.Context, t *Tourist) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`INSERT INTO tourists (`+touristColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.ID, t.DigitalID, t.UserID, t.FirstName, t.LastName, t.DateOfBirth, t.Nationality,
		t.AadhaarNumber, t.Gender, t.ProfileImage, t.EntryPoint, t.EntryDate, t.ExpectedExitDate,
		t.BlockchainAddress, t.VerificationHash, t.TxSignature, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tourist: %w", err)
	}

	if len(t.EmergencyContacts) > 0 {
		batch := &pgx.Batch{}
		for i := range t.EmergencyContacts {
			c := &t.EmergencyContacts[i]
			c.ID = uuid.New()
			batch.Queue(
				`INSERT INTO emergency_contacts (id, tourist_id, name, phone, email, relationship, is_primary)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				c.ID, t.ID, c.Name, c.Phone, c.Email, c.Relationship, c.IsPrimary,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert emergency contacts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID retrieves a tourist with its contacts.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Tourist, error) {
	t, err := scanTourist(r.db.QueryRow(ctx,
		`SELECT `+touristColumns+` FROM tourists WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadContacts(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListByUser returns every tourist registered by a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Tourist, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+touristColumns+` FROM tourists WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tourists: %w", err)
	}
	defer rows.Close()

	var out []*Tourist
	for rows.Next() {
		t, err := scanTourist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range out {
		if err := r.loadContacts(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LatestByUser returns the most recent tourist registered by a user.
func (r *Repository) LatestByUser(ctx context.Context, userID uuid.UUID) (*Tourist, error) {
	return scanTourist(r.db.QueryRow(ctx,
		`SELECT `+touristColumns+` FROM tourists WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID))
}

func (r *Repository) loadContacts(ctx context.Context, t *Tourist) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, phone, email, relationship, is_primary
		 FROM emergency_contacts WHERE tourist_id = $1 ORDER BY is_primary DESC, name`, t.ID)
	if err != nil {
		return fmt.Errorf("list emergency contacts: %w", err)
	}
	defer rows.Close()

	t.EmergencyContacts = t.EmergencyContacts[:0]
	for rows.Next() {
		var c EmergencyContact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Relationship, &c.IsPrimary); err != nil {
			return fmt.Errorf("scan emergency contact: %w", err)
		}
		t.EmergencyContacts = append(t.EmergencyContacts, c)
	}
	return rows.Err()
}

func scanTourist(row pgx.Row) (*Tourist, error) {
	var t Tourist
	err := row.Scan(
		&t.ID, &t.DigitalID, &t.UserID, &t.FirstName, &t.LastName, &t.DateOfBirth, &t.Nationality,
		&t.AadhaarNumber, &t.Gender, &t.ProfileImage, &t.EntryPoint, &t.EntryDate, &t.ExpectedExitDate,
		&t.BlockchainAddress, &t.VerificationHash, &t.TxSignature, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tourist: %w", err)
	}
	return &t, nil
}
