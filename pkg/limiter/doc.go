// Package limiter provides local and distributed rate limiting based on a
// sliding window of accepted arrivals.
//
// The primary entry point is the RateLimiter interface:
//
//	dec, err := limiter.Allow(ctx, id, limit)
//
// The returned Decision contains whether the request is allowed, how much
// quota remains, and timing hints for callers that want to set rate-limit
// headers (for example, Retry-After).
//
// # Overview
//
// Each identity has a log of the timestamps of its accepted requests. On every
// check the log is pruned to the arrivals strictly after now-Window, and the
// request is allowed iff fewer than Requests arrivals remain. An allowed
// request appends now to the log; a denied one leaves the log untouched, so
// denied traffic never extends the penalty.
//
// An arrival exactly at the window start is already outside the window.
//
// # Core Types
//
// Limit defines the policy:
//
//   - Requests: accepted arrivals permitted inside any trailing Window
//   - Window: the trailing interval, for example one minute
//
// DefaultLimit is 100 requests per 60 seconds.
//
// Identity defines "who" is being rate-limited. It is split into:
//
//   - Namespace: a logical grouping (for example, "user", "ip", "api_key")
//   - Key: the identifier within that namespace (for example, a user id)
//
// # Backends
//
// The package provides two implementations with the same Allow API:
//
//   - MemoryLimiter: an in-process limiter backed by a Go map. Each process,
//     and so each serverless or container instance, has its own independent
//     state. This is the default for the user-management endpoint. It also
//     exposes IsAllowed(key) for callers that only need a yes/no answer against
//     its configured default limit.
//
//   - RedisLimiter: a distributed limiter backed by a Redis sorted set. A Lua
//     script performs prune/count/append atomically, so many application
//     instances share one budget per identity.
//
// # Concurrency
//
// MemoryLimiter is safe for concurrent use by multiple goroutines; a single
// mutex totally orders checks. RedisLimiter delegates concurrency safety to
// Redis and the go-redis client.
//
// # Context and Error Policy
//
// MemoryLimiter never returns an error. RedisLimiter passes the context through
// to Redis, bounded by WithTimeout, and returns transport or context errors
// unchanged. The caller decides whether to fail open or closed.
//
// # Decision Semantics
//
//   - Allow reports whether the current request is permitted.
//   - Remaining is the quota left after the decision is applied.
//   - RetryAfter is 0 when allowed; when denied it is the time until the oldest
//     active arrival leaves the window.
//   - ResetTime is when the oldest active arrival leaves the window.
//
// # Limitations and Notes
//
//   - MemoryLimiter does not evict idle identities on its own. Call Prune
//     periodically in long-lived processes with high-cardinality keys.
//   - RedisLimiter keys expire one Window after the last write.
//   - RedisLimiter reloads its script once if Redis answers NOSCRIPT.
//
// # Configuration
//
// RedisLimiter is configured using the Functional Options pattern:
//
//	limiter, _ := NewRedisLimiter(client,
//		WithPrefix("myapp:rate:"),
//		WithTimeout(2*time.Second),
//		WithRecorder(myMetrics),
//	)
//
// MemoryLimiter takes MemoryOption values: WithClock, WithDefaultLimit and
// WithMemoryRecorder.
package limiter
