package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client's bucket survives without requests.
const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// clientBuckets hands out one token bucket per client address.
type clientBuckets struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*clientBucket
}

func newClientBuckets(rps float64, burst int) *clientBuckets {
	return &clientBuckets{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*clientBucket),
	}
}

// take spends one token for client. When none is left it returns false and
// how long until the next token arrives; nothing is spent in that case.
func (b *clientBuckets) take(client string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	cb, ok := b.buckets[client]
	if !ok {
		cb = &clientBucket{tokens: rate.NewLimiter(b.limit, b.burst)}
		b.buckets[client] = cb
	}
	cb.seen = now
	b.mu.Unlock()

	r := cb.tokens.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// evictIdle drops buckets not used since before cutoff.
func (b *clientBuckets) evictIdle(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client, cb := range b.buckets {
		if cb.seen.Before(cutoff) {
			delete(b.buckets, client)
		}
	}
}

// RateLimiter returns a Gin middleware that gives every client IP its own
// token bucket of rps requests per second with the given burst. Rejected
// requests get 429 with a Retry-After rounded up to whole seconds. Idle
// buckets are evicted until ctx is cancelled.
func RateLimiter(ctx context.Context, rps float64, burst int) gin.HandlerFunc {
	buckets := newClientBuckets(rps, burst)

	go func() {
		ticker := time.NewTicker(clientIdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				buckets.evictIdle(now.Add(-clientIdleTTL))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		ok, wait := buckets.take(c.ClientIP(), time.Now())
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate limit exceeded",
				"retryAfterSeconds": secs,
			})
			return
		}
		c.Next()
	}
}
