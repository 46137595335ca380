package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/vibecodingbible/edge-guard/internal/env"
	"github.com/vibecodingbible/edge-guard/internal/handler"
	"github.com/vibecodingbible/edge-guard/internal/metrics"
	"github.com/vibecodingbible/edge-guard/internal/store"
	"github.com/vibecodingbible/edge-guard/internal/sweeper"
	"github.com/vibecodingbible/edge-guard/pkg/cache"
	"github.com/vibecodingbible/edge-guard/pkg/limiter"
)

// Runtime owns the process-wide state of one instance: the cache, the rate
// limiter and the timers that maintain them. Build it once at startup, inject
// it into the HTTP layer, and Close it on shutdown.
type Runtime struct {
	Env      *env.Environment
	Cache    *cache.TTLCache[any]
	Limiter  limiter.RateLimiter
	Repo     store.Repository
	Metrics  *metrics.Prometheus
	Handler  *handler.Handler
	sweepers []*sweeper.Sweeper
	redis    *redis.Client
	logger   *slog.Logger

	closeOnce sync.Once
}

// Option customises runtime construction.
type Option func(*options)

type options struct {
	repo  store.Repository
	redis *redis.Client
}

// WithRepository replaces the default in-memory repository.
func WithRepository(repo store.Repository) Option {
	return func(o *options) {
		if repo != nil {
			o.repo = repo
		}
	}
}

// WithRedisClient supplies the client for the redis rate-limit backend instead
// of dialing EDGE_REDIS_ADDR.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		if client != nil {
			o.redis = client
		}
	}
}

func New(environment *env.Environment, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if environment == nil {
		return nil, errors.New("environment cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.repo == nil {
		o.repo = store.NewMemory()
	}

	rt := &Runtime{
		Env:     environment,
		Repo:    o.repo,
		Metrics: metrics.NewPrometheus(),
		logger:  logger,
	}

	rt.Cache = cache.New[any](
		cache.WithMaxSize(environment.Cache.MaxSize),
		cache.WithDefaultTTL(environment.Cache.TTL),
		cache.WithMetrics(rt.Metrics.Cache("users")),
	)

	limit := limiter.Limit{
		Requests: environment.Rate.MaxRequests,
		Window:   environment.Rate.Window,
	}

	jobs := map[string]sweeper.Job{
		"cache-cleanup": func(context.Context) error {
			if n := rt.Cache.Cleanup(); n > 0 {
				logger.Debug("expired cache entries removed", "count", n)
			}
			return nil
		},
	}

	if environment.Rate.UsesRedis() {
		client := o.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{Addr: environment.Redis.Addr})
			rt.redis = client
		}

		rl, err := limiter.NewRedisLimiter(client,
			limiter.WithPrefix(environment.Redis.Prefix),
			limiter.WithRecorder(rt.Metrics),
		)
		if err != nil {
			rt.closeRedis()
			return nil, fmt.Errorf("redis rate limiter: %w", err)
		}
		rt.Limiter = rl
	} else {
		ml := limiter.NewMemoryLimiter(
			limiter.WithDefaultLimit(limit),
			limiter.WithMemoryRecorder(rt.Metrics),
		)
		rt.Limiter = ml

		jobs["limiter-prune"] = func(context.Context) error {
			if n := ml.Prune(); n > 0 {
				logger.Debug("idle rate limit keys removed", "count", n)
			}
			return nil
		}
	}

	for name, job := range jobs {
		sw, err := sweeper.New(name, environment.Cache.Sweep, job, sweeper.WithLogger(logger))
		if err != nil {
			rt.closeRedis()
			return nil, fmt.Errorf("%s sweeper: %w", name, err)
		}
		rt.sweepers = append(rt.sweepers, sw)
	}

	cfg := handler.DefaultConfig()
	cfg.Limit = limit
	cfg.FailOpen = environment.Rate.FailOpen
	cfg.ProfileTTL = environment.Cache.TTL
	cfg.CorsOrigins = environment.Network.CorsOrigins
	cfg.Metrics = rt.Metrics.Handler()
	cfg.Logger = logger

	rt.Handler = handler.New(rt.Limiter, rt.Cache, rt.Repo, cfg)

	return rt, nil
}

// Start launches the periodic sweeps. They stop when ctx ends or on Close.
// If one sweeper fails to start, the ones already running are stopped.
func (rt *Runtime) Start(ctx context.Context) error {
	for i, sw := range rt.sweepers {
		if err := sw.Start(ctx); err != nil {
			for _, started := range rt.sweepers[:i] {
				started.Stop()
			}
			return fmt.Errorf("start sweeper: %w", err)
		}
	}

	rt.logger.Info("runtime started",
		"rate_backend", rt.Env.Rate.Backend,
		"cache_max_size", rt.Env.Cache.MaxSize,
		"sweep", rt.Env.Cache.Sweep,
	)

	return nil
}

// Routes returns the HTTP handler of the instance.
func (rt *Runtime) Routes() http.Handler {
	return rt.Handler.Routes()
}

// Close stops every timer, drops cached state and releases the Redis client.
// It is safe to call more than once.
func (rt *Runtime) Close() {
	rt.closeOnce.Do(func() {
		for _, sw := range rt.sweepers {
			sw.Stop()
		}

		rt.Cache.Clear()
		rt.closeRedis()

		rt.logger.Info("runtime closed")
	})
}

// closeRedis only closes clients the runtime dialed itself.
func (rt *Runtime) closeRedis() {
	if rt.redis == nil {
		return
	}

	if err := rt.redis.Close(); err != nil {
		rt.logger.Error("error closing redis client", "error", err)
	}
	rt.redis = nil
}
