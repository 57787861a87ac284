// Package session issues and verifies the signed session tokens carried in
// the auth_token cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

// Subject kinds.
const (
	KindTourist = "tourist"
	KindPolice  = "police"
)

const issuer = "utour-devbhoomi"

// ErrNoToken is returned by FromRequest when neither cookie nor header carries a token.
var ErrNoToken = errors.New("no session token")

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	Kind      string `json:"kind"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl defaults to 24 hours.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a signed session token for a tourist or police subject.
func (i *Issuer) Issue(subjectID, email, kind string) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		SubjectID: subjectID,
		Email:     email,
		Kind:      kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token claims")
	}
	if claims.Kind != KindTourist && claims.Kind != KindPolice {
		return nil, fmt.Errorf("unknown session kind %q", claims.Kind)
	}
	return claims, nil
}

// FromRequest extracts the raw token from the auth_token cookie, falling back
// to an "Authorization: Bearer" header.
func FromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimPrefix(h, "Bearer "); tok != "" {
			return tok, nil
		}
	}
	return "", ErrNoToken
}
