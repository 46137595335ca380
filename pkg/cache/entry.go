package cache

import "time"

// Entry is one cached computation result.
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether more than TTL has elapsed since CreatedAt.
// An entry exactly at its TTL boundary is still valid.
func (e *Entry[V]) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}
