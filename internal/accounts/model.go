package accounts

import (
	"time"

	"github.com/google/uuid"
)

// RoleTourist is the default role of a registered user.
const RoleTourist = "tourist"

// User is a tourist account holder.
type User struct {
	ID           uuid.UUID `json:"id"         db:"id"`
	Name         string    `json:"name"       db:"name"`
	Email        string    `json:"email"      db:"email"`
	Gender       string    `json:"gender"     db:"gender"`
	Role         string    `json:"role"       db:"role"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Police is a police department account.
type Police struct {
	ID           uuid.UUID `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Department   string    `json:"department" db:"department"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
