package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an account lookup finds no matching record.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository stores users and police accounts in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user. Sets ID and CreatedAt on u.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()

	q := `
		INSERT INTO users (id, name, email, gender, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, q,
		u.ID, u.Name, u.Email, u.Gender, u.Role, u.PasswordHash, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, gender, role, password_hash, created_at FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, gender, role, password_hash, created_at FROM users WHERE email = $1`, email)
}

// CreatePolice inserts a police account. Sets ID and CreatedAt on p.
func (r *Repository) CreatePolice(ctx context.Context, p *Police) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()

	q := `
		INSERT INTO police (id, email, department, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, q, p.ID, p.Email, p.Department, p.PasswordHash, p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create police: %w", err)
	}
	return nil
}

// GetPolice retrieves a police account by email and department.
func (r *Repository) GetPolice(ctx context.Context, email, department string) (*Police, error) {
	var p Police
	err := r.db.QueryRow(ctx,
		`SELECT id, email, department, password_hash, created_at
		 FROM police WHERE email = $1 AND department = $2`,
		email, department,
	).Scan(&p.ID, &p.Email, &p.Department, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get police: %w", err)
	}
	return &p, nil
}

func (r *Repository) scanUser(ctx context.Context, q string, args ...any) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&u.ID, &u.Name, &u.Email, &u.Gender, &u.Role, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
