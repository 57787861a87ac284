package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Utour-Signature"
	HeaderEvent     = "X-Utour-Event"
	HeaderDelivery  = "X-Utour-Delivery"
)

// DeliveryRecordFunc is an optional callback for recording delivery outcomes.
type DeliveryRecordFunc func(success bool)

// WebhookEnvelope is the body POSTed to every webhook endpoint.
type WebhookEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// WebhookPublisher POSTs events to a fixed set of endpoints, for example a
// district control room that wants anchoring notifications. Deliveries run in
// the background with retries; Publish never blocks on the network.
type WebhookPublisher struct {
	urls      []string
	secret    string
	prefix    string
	client    *http.Client
	delays    []time.Duration
	onMetrics DeliveryRecordFunc
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookPublisher creates a publisher for urls. Bodies are signed with
// HMAC-SHA256 under secret when it is non-empty.
func NewWebhookPublisher(urls []string, secret, prefix string, logger *zap.Logger) *WebhookPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookPublisher{
		urls:   urls,
		secret: secret,
		prefix: prefix,
		client: &http.Client{Timeout: 10 * time.Second},
		// Retry with backoff: immediately, then 1s, 5s.
		delays: []time.Duration{0, time.Second, 5 * time.Second},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetMetricsRecord configures the delivery metrics callback.
func (p *WebhookPublisher) SetMetricsRecord(fn DeliveryRecordFunc) {
	p.onMetrics = fn
}

// Publish implements Publisher. The request context is not used for delivery
// since it usually ends before retries finish.
func (p *WebhookPublisher) Publish(_ context.Context, subject string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}
	body, err := json.Marshal(WebhookEnvelope{
		ID:        uuid.NewString(),
		Type:      full,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook envelope: %w", err)
	}

	for _, url := range p.urls {
		p.wg.Add(1)
		go func(url string) {
			defer p.wg.Done()
			p.deliver(url, full, body)
		}(url)
	}
	return nil
}

// Close waits up to 10 seconds for in-flight deliveries, then abandons them.
func (p *WebhookPublisher) Close() {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		p.logger.Warn("webhook: abandoning in-flight deliveries")
	}
	p.cancel()
}

func (p *WebhookPublisher) deliver(url, eventType string, body []byte) {
	var sig string
	if p.secret != "" {
		sig = SignPayload(body, p.secret)
	}
	deliveryID := uuid.NewString()

	for attempt, delay := range p.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-p.ctx.Done():
				return
			}
		}

		status, err := p.post(url, eventType, deliveryID, body, sig)
		success := err == nil
		if p.onMetrics != nil {
			p.onMetrics(success)
		}
		if success {
			p.logger.Debug("webhook delivered", zap.String("url", url), zap.String("event", eventType))
			return
		}

		p.logger.Warn("webhook: delivery failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
}

func (p *WebhookPublisher) post(url, eventType, deliveryID string, body []byte, sig string) (int, error) {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)
	if sig != "" {
		req.Header.Set(HeaderSignature, sig)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// SignPayload computes the signature header value for body.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// ── Fan-out ─────────────────────────────────────────────────────────────────

type multiPublisher []Publisher

// Multi returns a Publisher that publishes to every pub in order. Errors are
// joined; one failing publisher does not stop the others.
func Multi(pubs ...Publisher) Publisher {
	if len(pubs) == 1 {
		return pubs[0]
	}
	return multiPublisher(pubs)
}

func (m multiPublisher) Publish(ctx context.Context, subject string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, subject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() {
	for _, p := range m {
		p.Close()
	}
}
