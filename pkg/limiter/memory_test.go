package limiter

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestMemoryLimiter_IsAllowed_Quota(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	for i := 0; i < 100; i++ {
		if !limiter.IsAllowed("u") {
			t.Fatalf("Request %d was unexpectedly denied", i+1)
		}
	}

	if limiter.IsAllowed("u") {
		t.Errorf("The 101st request should have been denied (max=100), but was allowed")
	}
}

func TestMemoryLimiter_IsAllowed_WindowRollover(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	for i := 0; i < 100; i++ {
		limiter.IsAllowed("u")
	}
	if limiter.IsAllowed("u") {
		t.Fatal("Should be denied once the quota is used")
	}

	clock.Advance(DefaultLimit.Window + time.Millisecond)

	if !limiter.IsAllowed("u") {
		t.Error("Expected request to be allowed after the window rolled over")
	}
}

func TestMemoryLimiter_IsAllowed_BoundaryIsOutsideWindow(t *testing.T) {
	clock := newFakeClock()
	limit := Limit{Requests: 1, Window: time.Minute}
	limiter := NewMemoryLimiter(WithClock(clock.Now), WithDefaultLimit(limit))

	if !limiter.IsAllowed("u") {
		t.Fatal("first request must be allowed")
	}

	clock.Advance(time.Minute - time.Millisecond)
	if limiter.IsAllowed("u") {
		t.Fatal("arrival is still inside the window, expected deny")
	}

	// the first arrival now sits exactly on window_start
	clock.Advance(time.Millisecond)
	if !limiter.IsAllowed("u") {
		t.Error("arrival exactly at window start must not count")
	}
}

func TestMemoryLimiter_IsAllowed_PerKeyIndependence(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	for i := 0; i < 100; i++ {
		limiter.IsAllowed("a")
	}
	if limiter.IsAllowed("a") {
		t.Fatal("key a should be exhausted")
	}

	if !limiter.IsAllowed("b") {
		t.Error("key b must not be affected by key a")
	}
}

func TestMemoryLimiter_DeniedCallsDoNotConsume(t *testing.T) {
	clock := newFakeClock()
	limit := Limit{Requests: 2, Window: 10 * time.Second}
	limiter := NewMemoryLimiter(WithClock(clock.Now), WithDefaultLimit(limit))

	limiter.IsAllowed("u") // t=0
	clock.Advance(5 * time.Second)
	limiter.IsAllowed("u") // t=5

	for i := 0; i < 10; i++ {
		if limiter.IsAllowed("u") {
			t.Fatal("expected deny while two arrivals are active")
		}
	}

	// t=10: the arrival at t=0 is on the boundary and drops out
	clock.Advance(5 * time.Second)
	if !limiter.IsAllowed("u") {
		t.Error("expected allow once the oldest arrival aged out")
	}
}

func TestMemoryLimiter_Allow_Decision(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	limit := Limit{Requests: 3, Window: 30 * time.Second}
	id := Identity{Namespace: "user", Key: "user_1"}

	dec, err := limiter.Allow(ctx, id, limit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allow {
		t.Fatal("Expected request to be allowed, but got denied!.")
	}
	if dec.Remaining != 2 {
		t.Errorf("Expected 2 remaining got %d instead!", dec.Remaining)
	}
	if want := clock.Now().Add(30 * time.Second); !dec.ResetTime.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, dec.ResetTime)
	}

	clock.Advance(10 * time.Second)
	limiter.Allow(ctx, id, limit)
	limiter.Allow(ctx, id, limit)

	dec, _ = limiter.Allow(ctx, id, limit)
	if dec.Allow {
		t.Fatal("Expected the 4th request to be denied")
	}
	if dec.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 20*time.Second {
		t.Errorf("Expected RetryAfter 20s, got %v", dec.RetryAfter)
	}
}

func TestMemoryLimiter_Allow_NamespacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter()
	limit := Limit{Requests: 1, Window: time.Minute}

	first, _ := limiter.Allow(ctx, Identity{Namespace: "user", Key: "42"}, limit)
	second, _ := limiter.Allow(ctx, Identity{Namespace: "ip", Key: "42"}, limit)

	if !first.Allow || !second.Allow {
		t.Error("the same key in different namespaces must have separate quotas")
	}
}

func TestMemoryLimiter_Prune(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	limiter.IsAllowed("idle")
	clock.Advance(30 * time.Second)
	limiter.IsAllowed("active")

	clock.Advance(31 * time.Second)

	if removed := limiter.Prune(); removed != 1 {
		t.Fatalf("expected 1 idle key pruned, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("expected 1 key left, got %d", limiter.Len())
	}
}

// Race Test
func TestMemoryLimiter_ThreadSafety(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	limiter := NewMemoryLimiter()

	limit := Limit{
		Requests: 100,
		Window:   time.Minute,
	}

	id := Identity{Namespace: "test", Key: "user_1"}

	var wg sync.WaitGroup

	wg.Add(100)
	for range 100 {
		go func() {
			defer wg.Done()
			limiter.Allow(ctx, id, limit)
		}()
	}
	wg.Wait()

	dec, _ := limiter.Allow(ctx, id, limit)
	if dec.Allow {
		t.Errorf("Expected window to be exhausted after 100 concurrent requests, but 101st was allowed")
	}
}

func BenchmarkMemoryLimiter_Allow(b *testing.B) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter := NewMemoryLimiter()

	limit := Limit{
		Requests: 1000,
		Window:   time.Second,
	}
	id := Identity{Namespace: "test", Key: "user_1"}

	for b.Loop() {
		limiter.Allow(ctx, id, limit)
	}
}
