package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vibecodingbible/edge-guard/pkg/limiter"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the caller identity stored by the identify middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags every request with an id and logs its outcome.
func (h *Handler) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.logger.Debug("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// protect authenticates the caller, then applies the rate limit before fn
// runs. Identity verification itself happens upstream; here the caller id
// only has to be a well-formed UUID.
func (h *Handler) protect(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID := uid.String()

		if !h.allow(w, r, userID) {
			return
		}

		fn(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// allow writes the rejection itself and reports false when the request must
// not proceed.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, userID string) bool {
	id := limiter.Identity{Namespace: h.cfg.Namespace, Key: userID}

	dec, err := h.limiter.Allow(r.Context(), id, h.cfg.Limit)
	if err != nil {
		h.logger.Error("rate limiter failed", "user_id", userID, "fail_open", h.cfg.FailOpen, "error", err)
		if h.cfg.FailOpen {
			return true
		}

		h.writeError(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
		return false
	}

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(h.cfg.Limit.Requests, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))

	if !dec.Allow {
		retry := int64(math.Ceil(dec.RetryAfter.Seconds()))
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))

		h.logger.Info("rate limit exceeded", "user_id", userID)
		h.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}

	return true
}
