package limiter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed sliding_window.lua
var slidingWindowScript string

const (
	defaultPrefix  = "limiter:"
	defaultTimeout = 5 * time.Second
)

type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	timeout  time.Duration
	recorder MetricsRecorder
	now      func() time.Time

	shaMu     sync.RWMutex
	scriptSHA string
}

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithPrefix sets the key prefix (default "limiter:").
func WithPrefix(prefix string) Option {
	return func(r *RedisLimiter) {
		r.prefix = prefix
	}
}

// WithTimeout bounds every Redis round trip, including the initial script load.
func WithTimeout(timeout time.Duration) Option {
	return func(r *RedisLimiter) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithRecorder injects a metrics backend.
func WithRecorder(rec MetricsRecorder) Option {
	return func(r *RedisLimiter) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithRedisClock replaces the clock used to timestamp arrivals.
func WithRedisClock(now func() time.Time) Option {
	return func(r *RedisLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedisLimiter(client *redis.Client, opts ...Option) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	r := &RedisLimiter{
		client:   client,
		prefix:   defaultPrefix,
		timeout:  defaultTimeout,
		recorder: &NoOpMetricsRecorder{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if _, err := r.loadScript(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	start := time.Now()
	tags := backendTags("redis", id.Namespace)
	r.recorder.Add(MetricCall, 1, tags)
	defer func() {
		r.recorder.Observe(MetricLatency, time.Since(start).Seconds(), tags)
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	key := r.prefix + id.String()
	now := r.now()
	args := []interface{}{
		now.UnixMicro(),             // ARGV[1]
		limit.Window.Microseconds(), // ARGV[2]
		limit.Requests,              // ARGV[3]
		uuid.NewString(),            // ARGV[4]
	}

	result, err := r.client.EvalSha(ctx, r.sha(), []string{key}, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		// script cache was flushed, e.g. by a Redis restart
		var sha string
		if sha, err = r.loadScript(ctx); err == nil {
			result, err = r.client.EvalSha(ctx, sha, []string{key}, args...).Result()
		}
	}
	if err != nil {
		r.recorder.Add(MetricError, 1, tags)
		return Decision{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		r.recorder.Add(MetricError, 1, tags)
		return Decision{}, errors.New("invalid lua response format")
	}

	allowed := convertToInt(values[0]) == 1
	remaining := convertToInt(values[1])
	retryAfter := time.Duration(convertToInt(values[2])) * time.Microsecond
	oldest := time.UnixMicro(convertToInt(values[3]))

	if !allowed {
		r.recorder.Add(MetricDenied, 1, tags)
		return Decision{
			Allow:      false,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetTime:  now.Add(retryAfter),
		}, nil
	}

	return Decision{
		Allow:      true,
		Remaining:  remaining,
		RetryAfter: 0,
		ResetTime:  oldest.Add(limit.Window),
	}, nil
}

func (r *RedisLimiter) sha() string {
	r.shaMu.RLock()
	defer r.shaMu.RUnlock()

	return r.scriptSHA
}

func (r *RedisLimiter) loadScript(ctx context.Context) (string, error) {
	sha, err := r.client.ScriptLoad(ctx, slidingWindowScript).Result()
	if err != nil {
		return "", fmt.Errorf("load sliding window script: %w", err)
	}

	r.shaMu.Lock()
	r.scriptSHA = sha
	r.shaMu.Unlock()

	return sha, nil
}

func convertToInt(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
