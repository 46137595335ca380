package env

import "time"

type CacheEnvironment struct {
	MaxSize int           `validate:"min=1"`
	TTL     time.Duration `validate:"gt=0"`
	Sweep   string        `validate:"required,cron"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type RateEnvironment struct {
	MaxRequests int64         `validate:"min=1"`
	Window      time.Duration `validate:"gt=0"`
	Backend     string        `validate:"required,oneof=memory redis"`
	FailOpen    bool
}

func (e RateEnvironment) UsesRedis() bool {
	return e.Backend == BackendRedis
}

type RedisEnvironment struct {
	Addr   string `validate:"required_if=Enabled true,omitempty,hostname_port"`
	Prefix string
	// Enabled mirrors RateEnvironment.UsesRedis for cross-field validation.
	Enabled bool `validate:"-"`
}
