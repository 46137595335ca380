package cache

import (
	"fmt"
	"time"
)

func ExampleTTLCache() {
	now := time.Unix(0, 0)
	c := New[string](
		WithMaxSize(2),
		WithClock(func() time.Time { return now }),
	)

	c.Set("a", "alpha", time.Second)
	c.Set("b", "beta", time.Minute)
	c.Set("c", "gamma", time.Minute)

	_, ok := c.Get("a")
	fmt.Println(ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("b")
	fmt.Println(ok, c.Len())
	// Output:
	// false
	// false 1
}
