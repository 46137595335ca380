package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibecodingbible/edge-guard/internal/env"
	"github.com/vibecodingbible/edge-guard/internal/store"
)

func TestRunReturnsRuntimeErrors(t *testing.T) {
	environment := &env.Environment{
		App:     env.AppEnvironment{Type: "local", LogLevel: "info"},
		Network: env.NetEnvironment{HttpAddr: "127.0.0.1:0"},
		Cache:   env.CacheEnvironment{MaxSize: 10, TTL: time.Minute, Sweep: "@every 1h"},
		Rate: env.RateEnvironment{
			MaxRequests: 10,
			Window:      time.Minute,
			Backend:     env.BackendRedis,
		},
		Redis: env.RedisEnvironment{Addr: "127.0.0.1:1", Enabled: true},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := run(environment, logger, store.NewMemory())
	assert.ErrorContains(t, err, "build runtime")
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	assert.True(t, newLogger("debug").Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, newLogger("bogus").Enabled(t.Context(), slog.LevelDebug))
}
