package limiter

import (
	"context"
	"sync"
	"time"
)

// requestLog holds recent accepted arrivals for one key, oldest first.
type requestLog struct {
	stamps []time.Time
	window time.Duration
}

// MemoryLimiter is an in-process sliding-window rate limiter.
//
// It is safe for concurrent use by multiple goroutines, but its state is local
// to the process and is not shared across replicas. Use RedisLimiter when you
// need a single global limit across multiple instances.
type MemoryLimiter struct {
	mu       sync.Mutex
	logs     map[string]*requestLog
	limit    Limit
	now      func() time.Time
	recorder MetricsRecorder
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDefaultLimit sets the quota used by IsAllowed.
func WithDefaultLimit(limit Limit) MemoryOption {
	return func(m *MemoryLimiter) {
		if limit.Requests > 0 && limit.Window > 0 {
			m.limit = limit
		}
	}
}

// WithMemoryRecorder injects a metrics backend.
func WithMemoryRecorder(rec MetricsRecorder) MemoryOption {
	return func(m *MemoryLimiter) {
		if rec != nil {
			m.recorder = rec
		}
	}
}

// NewMemoryLimiter constructs a MemoryLimiter with empty state and DefaultLimit.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		logs:     make(map[string]*requestLog),
		limit:    DefaultLimit,
		now:      time.Now,
		recorder: &NoOpMetricsRecorder{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// IsAllowed reports whether one more request for key fits the default limit.
// An allowed call consumes one unit of quota; a denied call does not.
func (m *MemoryLimiter) IsAllowed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.check(key, m.limit, m.now()).Allow
}

// Allow checks whether a request for the given identity should be allowed under
// the provided limit. It never returns an error.
func (m *MemoryLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	start := time.Now()

	m.mu.Lock()
	dec := m.check(id.String(), limit, m.now())
	m.mu.Unlock()

	tags := backendTags("memory", id.Namespace)
	m.recorder.Add(MetricCall, 1, tags)
	if !dec.Allow {
		m.recorder.Add(MetricDenied, 1, tags)
	}
	m.recorder.Observe(MetricLatency, time.Since(start).Seconds(), tags)

	return dec, nil
}

// check must be called with m.mu held.
func (m *MemoryLimiter) check(key string, limit Limit, now time.Time) Decision {
	windowStart := now.Add(-limit.Window)

	log, exists := m.logs[key]
	if !exists {
		log = &requestLog{}
		m.logs[key] = log
	}
	log.window = limit.Window

	// only arrivals strictly after windowStart are active
	active := log.stamps[:0]
	var oldest time.Time
	for _, t := range log.stamps {
		if !t.After(windowStart) {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		active = append(active, t)
	}
	log.stamps = active

	if int64(len(active)) >= limit.Requests {
		retryAfter := limit.Window
		if !oldest.IsZero() {
			retryAfter = oldest.Add(limit.Window).Sub(now)
		}

		return Decision{
			Allow:      false,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetTime:  now.Add(retryAfter),
		}
	}

	log.stamps = append(log.stamps, now)
	if oldest.IsZero() {
		oldest = now
	}

	return Decision{
		Allow:      true,
		Remaining:  limit.Requests - int64(len(log.stamps)),
		RetryAfter: 0,
		ResetTime:  oldest.Add(limit.Window),
	}
}

// Prune drops keys that have no arrivals inside their window and returns how
// many were dropped. IsAllowed never prunes keys on its own.
func (m *MemoryLimiter) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, log := range m.logs {
		windowStart := now.Add(-log.window)
		idle := true
		for _, t := range log.stamps {
			if t.After(windowStart) {
				idle = false
				break
			}
		}
		if idle {
			delete(m.logs, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.logs)
}
