// Package ratelimit bounds outbound calls per logical endpoint with
// token buckets, so a burst of syncs cannot exhaust provider quotas.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

// Endpoint classes, matched in priority order on the endpoint key.
// OAuth/token endpoints get a deliberately small, slow bucket to blunt
// credential abuse; event-data endpoints get the largest one.
const (
	oauthCapacity = 10
	oauthRefill   = 60 * time.Second

	eventsCapacity = 100
	eventsRefill   = 10 * time.Second

	defaultCapacity = 50
	defaultRefill   = 30 * time.Second
)

type bucket struct {
	capacity   int
	tokens     int
	lastRefill time.Time
	refillRate time.Duration
}

// refill credits the bucket for elapsed whole refill intervals. Partial
// intervals are not credited until a full one has passed, and a completed
// interval restores the bucket to full capacity rather than dripping
// tokens in. Quotas here are stated as "N requests per window", so the
// window boundary is the reset point. Do not change this to a
// proportional drip.
func (b *bucket) refill(now time.Time) {
	intervals := now.Sub(b.lastRefill) / b.refillRate
	if intervals <= 0 {
		return
	}
	b.tokens = b.capacity
	b.lastRefill = b.lastRefill.Add(intervals * b.refillRate)
}

// BucketStatus is a read-only snapshot for diagnostics.
type BucketStatus struct {
	Available  int
	Capacity   int
	NextRefill time.Time
}

// Limiter holds one lazily created bucket per endpoint key. Buckets live
// for the process lifetime.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	log     *zap.SugaredLogger
	now     func() time.Time
}

func New(log *zap.SugaredLogger) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		log:     log,
		now:     time.Now,
	}
}

// Allow attempts to deduct n tokens from the endpoint's bucket. The
// lookup, refill and deduction happen under one lock so concurrent
// callers hitting the same endpoint cannot race past the limit.
// A rejection is not retried here; the caller gets a RateLimitError
// with the wait until the next refill and decides what to do.
func (l *Limiter) Allow(endpoint string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[endpoint]
	if !ok {
		capacity, rate := classify(endpoint)
		b = &bucket{
			capacity:   capacity,
			tokens:     capacity,
			lastRefill: l.now(),
			refillRate: rate,
		}
		l.buckets[endpoint] = b
	}

	now := l.now()
	b.refill(now)

	if b.tokens < n {
		retryAfter := b.lastRefill.Add(b.refillRate).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.log.Debugw("rate limited", "endpoint", endpoint, "retry_after", retryAfter)
		return &domain.RateLimitError{Endpoint: endpoint, RetryAfter: retryAfter}
	}

	b.tokens -= n
	return nil
}

// Status returns the bucket snapshot for an endpoint, or false if no
// call has created a bucket for it yet.
func (l *Limiter) Status(endpoint string) (BucketStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[endpoint]
	if !ok {
		return BucketStatus{}, false
	}
	b.refill(l.now())

	return BucketStatus{
		Available:  b.tokens,
		Capacity:   b.capacity,
		NextRefill: b.lastRefill.Add(b.refillRate),
	}, true
}

func classify(endpoint string) (capacity int, rate time.Duration) {
	key := strings.ToLower(endpoint)
	switch {
	case strings.Contains(key, "oauth2") || strings.Contains(key, "token"):
		return oauthCapacity, oauthRefill
	case strings.Contains(key, "events") || strings.Contains(key, "calendars"):
		return eventsCapacity, eventsRefill
	default:
		return defaultCapacity, defaultRefill
	}
}
