package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/vibecodingbible/edge-guard/internal/store"
	"github.com/vibecodingbible/edge-guard/pkg/cache"
	"github.com/vibecodingbible/edge-guard/pkg/limiter"
)

// Config tunes the user-management endpoint.
type Config struct {
	Limit       limiter.Limit
	Namespace   limiter.Namespace
	FailOpen    bool
	ProfileTTL  time.Duration
	AccessTTL   time.Duration
	ProgressTTL time.Duration
	CorsOrigins []string
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Limit:       limiter.DefaultLimit,
		Namespace:   "user",
		FailOpen:    true,
		ProfileTTL:  cache.DefaultTTL,
		AccessTTL:   time.Minute,
		ProgressTTL: time.Minute,
	}
}

// Handler serves the user-management endpoint. Every /v1 route is rate
// limited per caller before any business logic runs.
type Handler struct {
	limiter limiter.RateLimiter
	cache   *cache.TTLCache[any]
	repo    store.Repository
	cfg     Config
	logger  *slog.Logger
}

func New(l limiter.RateLimiter, c *cache.TTLCache[any], repo store.Repository, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		limiter: l,
		cache:   c,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
	}
}

// Routes builds the full HTTP handler, including CORS and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.health)
	if h.cfg.Metrics != nil {
		mux.Handle("GET /metrics", h.cfg.Metrics)
	}

	mux.Handle("GET /v1/profile", h.protect(h.getProfile))
	mux.Handle("PUT /v1/profile", h.protect(h.putProfile))
	mux.Handle("GET /v1/access/{resourceType}/{resourceId}", h.protect(h.getAccess))
	mux.Handle("GET /v1/progress", h.protect(h.getProgress))
	mux.Handle("PUT /v1/progress", h.protect(h.putProgress))

	c := cors.New(cors.Options{
		AllowedOrigins: h.cfg.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			HeaderUserID,
			HeaderRequestID,
		},
		ExposedHeaders: []string{
			"Retry-After",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			HeaderRequestID,
		},
		AllowCredentials: true,
	})

	return h.withRequestLog(c.Handler(mux))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
