//go:build integration

package accounts_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/accounts"
)

// Run with: DATABASE_URL=... go test -tags integration ./internal/accounts/
// The database must already carry migrations/001_init.up.sql.

func setupRepository(t *testing.T) *accounts.Repository {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	return accounts.NewRepository(db)
}

func uniqueEmail() string {
	return "it-" + uuid.NewString() + "@example.com"
}

func TestRepository_users(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	u := &accounts.User{Name: "Asha Rao", Email: uniqueEmail(), Gender: "female", Role: accounts.RoleTourist, PasswordHash: "hash"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == uuid.Nil || u.CreatedAt.IsZero() {
		t.Fatalf("CreateUser did not set ID/CreatedAt: %+v", u)
	}

	byEmail, err := repo.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.Name != u.Name || byEmail.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail: got %+v", byEmail)
	}

	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.Email != u.Email {
		t.Errorf("GetUserByID: got %+v", byID)
	}

	dup := &accounts.User{Name: "Other", Email: u.Email, Gender: "male", Role: accounts.RoleTourist, PasswordHash: "x"}
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, accounts.ErrDuplicateEmail) {
		t.Errorf("duplicate email: got %v, want ErrDuplicateEmail", err)
	}

	if _, err := repo.GetUserByEmail(ctx, uniqueEmail()); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("unknown email: got %v, want ErrNotFound", err)
	}
	if _, err := repo.GetUserByID(ctx, uuid.New()); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestRepository_police(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	p := &accounts.Police{Email: uniqueEmail(), Department: "Dehradun", PasswordHash: "hash"}
	if err := repo.CreatePolice(ctx, p); err != nil {
		t.Fatalf("CreatePolice: %v", err)
	}

	got, err := repo.GetPolice(ctx, p.Email, "Dehradun")
	if err != nil {
		t.Fatalf("GetPolice: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("GetPolice: got %+v", got)
	}

	if _, err := repo.GetPolice(ctx, p.Email, "Haridwar"); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("wrong department: got %v, want ErrNotFound", err)
	}
	if err := repo.CreatePolice(ctx, &accounts.Police{Email: p.Email, Department: "Haridwar", PasswordHash: "x"}); !errors.Is(err, accounts.ErrDuplicateEmail) {
		t.Errorf("duplicate police email: got %v, want ErrDuplicateEmail", err)
	}
}
