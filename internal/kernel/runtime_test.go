package kernel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecodingbible/edge-guard/internal/env"
	"github.com/vibecodingbible/edge-guard/internal/handler"
	"github.com/vibecodingbible/edge-guard/internal/store"
	"github.com/vibecodingbible/edge-guard/internal/sweeper"
	"github.com/vibecodingbible/edge-guard/pkg/limiter"
)

func testEnvironment(backend string) *env.Environment {
	return &env.Environment{
		App: env.AppEnvironment{Type: "local", LogLevel: "debug"},
		Network: env.NetEnvironment{
			HttpAddr:    ":0",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Cache: env.CacheEnvironment{
			MaxSize: 10,
			TTL:     time.Minute,
			Sweep:   "@every 1h",
		},
		Rate: env.RateEnvironment{
			MaxRequests: 2,
			Window:      time.Minute,
			Backend:     backend,
			FailOpen:    true,
		},
		Redis: env.RedisEnvironment{
			Prefix:  "test:",
			Enabled: backend == env.BackendRedis,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededRepo(t *testing.T) (*store.Memory, string) {
	t.Helper()

	repo := store.NewMemory()
	userID := uuid.NewString()

	_, err := repo.UpdateProfile(context.Background(), store.Profile{ID: userID, DisplayName: "Ada"})
	require.NoError(t, err)

	return repo, userID
}

func get(t *testing.T, h http.Handler, userID string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	req.Header.Set(handler.HeaderUserID, userID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec.Code
}

func TestNew_NilEnvironment(t *testing.T) {
	_, err := New(nil, discardLogger())
	assert.Error(t, err)
}

func TestRuntime_MemoryBackend(t *testing.T) {
	repo, userID := seededRepo(t)

	rt, err := New(testEnvironment(env.BackendMemory), discardLogger(), WithRepository(repo))
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Start(context.Background()))

	_, ok := rt.Limiter.(*limiter.MemoryLimiter)
	assert.True(t, ok)
	assert.Len(t, rt.sweepers, 2, "cache cleanup and limiter prune")

	h := rt.Routes()
	assert.Equal(t, http.StatusOK, get(t, h, userID))
	assert.Equal(t, http.StatusOK, get(t, h, userID))
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, userID))

	assert.Equal(t, 1, rt.Cache.Len())
}

func TestRuntime_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:            mr.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	repo, userID := seededRepo(t)

	rt, err := New(testEnvironment(env.BackendRedis), discardLogger(),
		WithRepository(repo),
		WithRedisClient(client),
	)
	require.NoError(t, err)
	defer rt.Close()

	_, ok := rt.Limiter.(*limiter.RedisLimiter)
	assert.True(t, ok)
	assert.Len(t, rt.sweepers, 1, "only the cache needs sweeping")

	h := rt.Routes()
	assert.Equal(t, http.StatusOK, get(t, h, userID))
	assert.Equal(t, http.StatusOK, get(t, h, userID))
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, userID))

	assert.True(t, mr.Exists("test:user:"+userID))
}

func TestRuntime_RedisUnreachable(t *testing.T) {
	environment := testEnvironment(env.BackendRedis)
	environment.Redis.Addr = "127.0.0.1:1"

	_, err := New(environment, discardLogger())
	assert.Error(t, err)
}

func TestRuntime_CloseIsIdempotent(t *testing.T) {
	rt, err := New(testEnvironment(env.BackendMemory), discardLogger())
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))

	rt.Cache.Set("k", "v", 0)

	rt.Close()
	rt.Close()

	assert.Equal(t, 0, rt.Cache.Len())
	for _, sw := range rt.sweepers {
		assert.False(t, sw.Running())
	}
}

func TestRunServer_Nil(t *testing.T) {
	assert.Error(t, RunServer(nil))
}

func TestRunServer_ListenError(t *testing.T) {
	err := RunServer(&http.Server{Addr: "invalid-address"})
	assert.Error(t, err)
}

func TestRuntime_NewServer(t *testing.T) {
	rt, err := New(testEnvironment(env.BackendMemory), discardLogger())
	require.NoError(t, err)
	defer rt.Close()

	srv := rt.NewServer()
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Positive(t, srv.ReadHeaderTimeout)
}

func TestRuntime_StartFailureStopsStartedSweepers(t *testing.T) {
	rt, err := New(testEnvironment(env.BackendMemory), discardLogger())
	require.NoError(t, err)
	defer rt.Close()

	require.Len(t, rt.sweepers, 2)

	// the last sweeper is already running, so starting it again fails
	last := rt.sweepers[len(rt.sweepers)-1]
	require.NoError(t, last.Start(context.Background()))

	err = rt.Start(context.Background())
	require.ErrorIs(t, err, sweeper.ErrRunning)

	for _, sw := range rt.sweepers[:len(rt.sweepers)-1] {
		assert.False(t, sw.Running(), "sweepers started before the failure are stopped")
	}
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not stop after the context ended")
	}
}
