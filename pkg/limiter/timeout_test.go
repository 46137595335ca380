package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisLimiter_ContextCancellation(t *testing.T) {
	_, client := newTestRedis(t)

	limiter, err := NewRedisLimiter(client)
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limit := Limit{
		Requests: 100,
		Window:   time.Second,
	}
	id := Identity{Namespace: "test", Key: "user_cancel"}

	_, err = limiter.Allow(ctx, id, limit)

	if err == nil {
		t.Fatal("Expected an error due to cancelled context, but got nil")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to be context.Canceled, but got: %v", err)
	}
}
