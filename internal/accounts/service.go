package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrMissingFields is returned when a required registration or login field is blank.
var ErrMissingFields = errors.New("missing required fields")

// ErrInvalidCredentials is returned for an unknown account or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// repository is the storage interface consumed by Service.
type repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreatePolice(ctx context.Context, p *Police) error
	GetPolice(ctx context.Context, email, department string) (*Police, error)
}

// Service implements tourist and police account management.
type Service struct {
	repo   repository
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(repo repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates a tourist account. All arguments are required.
func (s *Service) Register(ctx context.Context, name, email, password, gender string) (*User, error) {
	if blank(name, email, password, gender) {
		return nil, fmt.Errorf("%w: name, email, password, gender", ErrMissingFields)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         name,
		Email:        normalizeEmail(email),
		Gender:       gender,
		Role:         RoleTourist,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID.String()))
	return u, nil
}

// RegisterPolice creates a police department account.
func (s *Service) RegisterPolice(ctx context.Context, email, password, department string) (*Police, error) {
	if blank(email, password, department) {
		return nil, fmt.Errorf("%w: email, password, department", ErrMissingFields)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	p := &Police{
		Email:        normalizeEmail(email),
		Department:   department,
		PasswordHash: hash,
	}
	if err := s.repo.CreatePolice(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create police: %w", err)
	}

	s.logger.Info("police department registered",
		zap.String("police_id", p.ID.String()),
		zap.String("department", department),
	)
	return p, nil
}

// Login verifies tourist credentials.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	if blank(email, password) {
		return nil, fmt.Errorf("%w: email, password", ErrMissingFields)
	}

	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// LoginPolice verifies police credentials for the given department.
func (s *Service) LoginPolice(ctx context.Context, email, password, department string) (*Police, error) {
	if blank(email, password, department) {
		return nil, fmt.Errorf("%w: email, password, department", ErrMissingFields)
	}

	p, err := s.repo.GetPolice(ctx, normalizeEmail(email), department)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup police: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// GetUser retrieves a tourist account by ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
