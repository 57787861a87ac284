package trips

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/accounts"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/events"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
)

var (
	// ErrMissingFields is returned when a required trip field is blank.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUserNotFound is returned when the trip owner does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when a requester may not see a tourist record.
	ErrForbidden = errors.New("access denied")
	// ErrNoDigitalID is returned when a user has not registered any trip yet.
	ErrNoDigitalID = errors.New("no digital id found")
	// ErrInvalidDate is returned for an unparsable date field.
	ErrInvalidDate = errors.New("invalid date")
)

const (
	digitalIDPrefix   = "DID"
	digitalIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	digitalIDRandLen  = 7
)

type tripRepo interface {
	Create(ctx context.Context, t *Tourist) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tourist, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Tourist, error)
	LatestByUser(ctx context.Context, userID uuid.UUID) (*Tourist, error)
}

type userLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*accounts.User, error)
}

// identityLedger is the part of *ledger.Ledger used by Service.
type identityLedger interface {
	Store(ctx context.Context, f ledger.Fields) (ledger.Receipt, error)
	Verify(ctx context.Context, address, presentedHash string) ledger.VerifyResult
	Stats() ledger.Stats
	Verifications() int64
}

// Service creates trips, anchors tourist identities, and answers
// verification requests from authorities.
type Service struct {
	repo      tripRepo
	users     userLookup
	ledger    identityLedger
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(repo tripRepo, users userLookup, l identityLedger, pub events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		ledger:    l,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTrip anchors the tourist's identity on the ledger and stores the trip
// with the returned address, hash and signature.
func (s *Service) CreateTrip(ctx context.Context, userID uuid.UUID, req TripRequest) (*Tourist, ledger.Receipt, error) {
	if missing(req.FirstName, req.LastName, req.DateOfBirth, req.Nationality,
		req.AadhaarNumber, req.Gender, req.EntryPoint) {
		return nil, ledger.Receipt{}, ErrMissingFields
	}

	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return nil, ledger.Receipt{}, fmt.Errorf("%w: dateOfBirth", ErrInvalidDate)
	}
	var exit *time.Time
	if req.ExpectedExitDate != "" {
		d, err := parseDate(req.ExpectedExitDate)
		if err != nil {
			return nil, ledger.Receipt{}, fmt.Errorf("%w: expectedExitDate", ErrInvalidDate)
		}
		exit = &d
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ledger.Receipt{}, ErrUserNotFound
		}
		return nil, ledger.Receipt{}, fmt.Errorf("lookup user: %w", err)
	}

	digitalID, err := s.newDigitalID()
	if err != nil {
		return nil, ledger.Receipt{}, err
	}

	t := &Tourist{
		DigitalID:         digitalID,
		UserID:            user.ID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       dob,
		Nationality:       req.Nationality,
		AadhaarNumber:     req.AadhaarNumber,
		Gender:            req.Gender,
		ProfileImage:      req.ProfileImage,
		EntryPoint:        req.EntryPoint,
		EntryDate:         s.now().UTC(),
		ExpectedExitDate:  exit,
		EmergencyContacts: req.EmergencyContacts,
	}

	rcpt, err := s.ledger.Store(ctx, ledger.Fields{
		FullName:   t.FullName(),
		SubjectID:  user.ID.String(),
		NationalID: t.AadhaarNumber,
	})
	if err != nil {
		return nil, ledger.Receipt{}, fmt.Errorf("anchor identity: %w", err)
	}
	t.BlockchainAddress = rcpt.Address
	t.VerificationHash = rcpt.VerificationHash
	t.TxSignature = rcpt.Signature

	if err := s.repo.Create(ctx, t); err != nil {
		// The ledger has no delete path; the orphaned address stays anchored.
		s.logger.Error("store tourist after anchoring",
			zap.String("address", rcpt.Address),
			zap.Error(err),
		)
		return nil, ledger.Receipt{}, fmt.Errorf("create tourist: %w", err)
	}

	s.logger.Info("trip registered",
		zap.String("tourist_id", t.ID.String()),
		zap.String("digital_id", t.DigitalID),
		zap.String("address", rcpt.Address),
	)
	s.publish(ctx, events.SubjectIdentityAnchored, events.IdentityAnchored{
		Address:   rcpt.Address,
		DigitalID: t.DigitalID,
		TouristID: t.ID.String(),
		UserID:    user.ID.String(),
		At:        t.CreatedAt,
	})

	return t, rcpt, nil
}

// ListTrips returns every trip registered by userID.
func (s *Service) ListTrips(ctx context.Context, userID uuid.UUID) ([]*Tourist, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return s.repo.ListByUser(ctx, userID)
}

// VerificationInfo returns the details an authority needs to verify a tourist.
// Tourists may only read their own records; police may read any.
func (s *Service) VerificationInfo(ctx context.Context, touristID, requesterID uuid.UUID, police bool) (*DigitalIDInfo, error) {
	t, err := s.repo.GetByID(ctx, touristID)
	if err != nil {
		return nil, err
	}
	if !police && t.UserID != requesterID {
		return nil, ErrForbidden
	}
	return s.info(t), nil
}

// LatestDigitalID returns the digital ID from the user's most recent trip.
func (s *Service) LatestDigitalID(ctx context.Context, userID uuid.UUID) (*DigitalIDInfo, error) {
	t, err := s.repo.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoDigitalID
		}
		return nil, err
	}
	return s.info(t), nil
}

// VerifyIdentity checks a presented address and hash against the ledger and
// publishes the outcome.
func (s *Service) VerifyIdentity(ctx context.Context, address, hash string) ledger.VerifyResult {
	res := s.ledger.Verify(ctx, address, hash)
	s.publish(ctx, events.SubjectIdentityVerified, events.IdentityVerified{
		Address: address,
		Valid:   res.Valid,
		Reason:  res.Reason,
		At:      s.now().UTC(),
	})
	return res
}

// LedgerStats exposes ledger statistics for the authority dashboard.
func (s *Service) LedgerStats() ledger.Stats {
	return s.ledger.Stats()
}

func (s *Service) info(t *Tourist) *DigitalIDInfo {
	return &DigitalIDInfo{
		TouristID:          t.ID,
		DigitalID:          t.DigitalID,
		BlockchainAddress:  t.BlockchainAddress,
		VerificationHash:   t.VerificationHash,
		Name:               t.FullName(),
		CreatedAt:          t.CreatedAt,
		TotalVerifications: s.ledger.Verifications(),
	}
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// newDigitalID returns "DID-<unix ms>-<7 base36 chars>".
func (s *Service) newDigitalID() (string, error) {
	var sb strings.Builder
	base := big.NewInt(int64(len(digitalIDAlphabet)))
	for i := 0; i < digitalIDRandLen; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("generate digital id: %w", err)
		}
		sb.WriteByte(digitalIDAlphabet[n.Int64()])
	}
	return fmt.Sprintf("%s-%d-%s", digitalIDPrefix, s.now().UnixMilli(), sb.String()), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

func missing(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
