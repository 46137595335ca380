package env

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load seeds the process environment from the .env file at path, if it
// exists, then reads and validates the configuration. Variables already set
// in the process win over the file.
func Load(path string, validate *Validator) (*Environment, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load environment from %s: %w", path, err)
		}
	}

	environment, err := FromProcess()
	if err != nil {
		return nil, err
	}

	if validate == nil {
		validate = NewValidator()
	}

	if err := validate.Check(environment); err != nil {
		return nil, err
	}

	return environment, nil
}

// FromProcess reads the configuration from environment variables, applying
// defaults for anything unset.
func FromProcess() (*Environment, error) {
	maxSize, err := intVar("EDGE_CACHE_MAX_SIZE", "1000")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := durationVar("EDGE_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	maxRequests, err := intVar("EDGE_RATE_MAX_REQUESTS", "100")
	if err != nil {
		return nil, err
	}

	window, err := durationVar("EDGE_RATE_WINDOW", "1m")
	if err != nil {
		return nil, err
	}

	failOpen, err := strconv.ParseBool(getEnvOr("EDGE_RATE_FAIL_OPEN", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid value for EDGE_RATE_FAIL_OPEN: %w", err)
	}

	rate := RateEnvironment{
		MaxRequests: int64(maxRequests),
		Window:      window,
		Backend:     getEnvOr("EDGE_RATE_BACKEND", BackendMemory),
		FailOpen:    failOpen,
	}

	return &Environment{
		App: AppEnvironment{
			Type:     getEnvOr("EDGE_APP_ENV", local),
			LogLevel: getEnvOr("EDGE_LOG_LEVEL", "info"),
		},
		Network: NetEnvironment{
			HttpAddr:    getEnvOr("EDGE_HTTP_ADDR", ":8080"),
			CorsOrigins: splitList(getEnvOr("EDGE_CORS_ORIGINS", "http://localhost:3000")),
		},
		Cache: CacheEnvironment{
			MaxSize: maxSize,
			TTL:     cacheTTL,
			Sweep:   getEnvOr("EDGE_CACHE_SWEEP", "@every 5m"),
		},
		Rate: rate,
		Redis: RedisEnvironment{
			Addr:    getEnvOr("EDGE_REDIS_ADDR", "localhost:6379"),
			Prefix:  getEnvOr("EDGE_REDIS_PREFIX", "limiter:"),
			Enabled: rate.UsesRedis(),
		},
	}, nil
}

func intVar(key, fallback string) (int, error) {
	n, err := strconv.Atoi(getEnvOr(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return n, nil
}

func durationVar(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOr(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return d, nil
}
