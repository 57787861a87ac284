// Package events publishes identity lifecycle notifications.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Subjects, relative to the configured prefix.
const (
	SubjectIdentityAnchored = "identity.anchored"
	SubjectIdentityVerified = "identity.verified"
	SubjectDependencyHealth = "system.dependency_health"
)

// IdentityAnchored is published after a trip anchors a tourist identity.
type IdentityAnchored struct {
	Address   string    `json:"blockchainAddress"`
	DigitalID string    `json:"digitalId"`
	TouristID string    `json:"touristId"`
	UserID    string    `json:"userId"`
	At        time.Time `json:"at"`
}

// IdentityVerified is published after every verification attempt.
type IdentityVerified struct {
	Address string    `json:"blockchainAddress"`
	Valid   bool      `json:"valid"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// DependencyHealth is published when a backing store becomes unreachable or
// recovers.
type DependencyHealth struct {
	Dependency string    `json:"dependency"`
	Healthy    bool      `json:"healthy"`
	At         time.Time `json:"at"`
}

// Publisher delivers an event payload to subscribers of subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// NoopPublisher only logs events. It is used when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *NoopPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.logger.Debug("event (no broker configured)",
		zap.String("subject", subject),
		zap.Any("payload", payload),
	)
	return nil
}

// Close implements Publisher.
func (p *NoopPublisher) Close() {}
