package limiter

import (
	"context"
	"time"
)

type Namespace string

// Limit is a sliding-window quota: at most Requests accepted arrivals inside
// any trailing Window.
type Limit struct {
	Requests int64
	Window   time.Duration
}

// DefaultLimit is the per-user quota of the user-management endpoint.
var DefaultLimit = Limit{
	Requests: 100,
	Window:   60 * time.Second,
}

type Decision struct {
	Allow      bool
	Remaining  int64
	RetryAfter time.Duration
	ResetTime  time.Time
}

type Identity struct {
	Namespace Namespace
	Key       string
}

func (id Identity) String() string {
	if id.Namespace == "" {
		return id.Key
	}

	return string(id.Namespace) + ":" + id.Key
}

type RateLimiter interface {
	Allow(ctx context.Context, id Identity, limit Limit) (Decision, error)
}
