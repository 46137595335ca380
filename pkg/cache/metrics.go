package cache

// Metrics receives cache lifecycle events.
type Metrics interface {
	// Hit is called when Get returns a live value.
	Hit()

	// Miss is called when Get finds nothing, or only an expired entry.
	Miss()

	// Eviction is called when an entry is dropped to make room for a new key.
	Eviction()

	// Expire is called for every expired entry removed, lazily or by Cleanup.
	Expire()
}

// NoopMetrics ignores all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}
