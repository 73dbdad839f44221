package compose

import (
	"time"

	"github.com/examforge/examforge/internal/llm"
	"github.com/examforge/examforge/internal/similarity"
)

// Config tunes a composition run.
type Config struct {
	// MaxAttempts is the generation budget per slot.
	MaxAttempts int

	// TopK is the number of corpus questions retrieved as grounding.
	TopK int

	// FallbackPool is the number of scope questions considered for corpus
	// fallback once the slot's own context is used up.
	FallbackPool int

	// DuplicateThreshold is the Jaccard similarity at or above which two
	// questions are near-duplicates.
	DuplicateThreshold float64

	// MaxConcurrentGenerations caps in-flight generator calls per run.
	MaxConcurrentGenerations int64

	// SlotWorkers caps the number of slots processed at once.
	SlotWorkers int

	// CallTimeout bounds one generator call. Zero means no timeout.
	CallTimeout time.Duration

	// Backoff is the wait between attempts after a transient failure.
	Backoff llm.BackoffConfig

	// MaxAvoid caps the avoid list of each prompt. Texts rejected earlier in
	// the slot are kept ahead of accepted ones.
	MaxAvoid int
}

// DefaultConfig returns the recommended settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:              3,
		TopK:                     3,
		FallbackPool:             64,
		DuplicateThreshold:       similarity.DefaultThreshold,
		MaxConcurrentGenerations: 4,
		SlotWorkers:              16,
		CallTimeout:              30 * time.Second,
		Backoff:                  llm.DefaultBackoff(),
		MaxAvoid:                 8,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.TopK < 0 {
		c.TopK = 0
	}
	if c.FallbackPool < 0 {
		c.FallbackPool = 0
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = d.DuplicateThreshold
	}
	if c.MaxConcurrentGenerations <= 0 {
		c.MaxConcurrentGenerations = d.MaxConcurrentGenerations
	}
	if c.SlotWorkers <= 0 {
		c.SlotWorkers = d.SlotWorkers
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
