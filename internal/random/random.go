// Package random wraps the seeded pseudo-random source consumed by the
// level generator. A source carries sequential mutable state and must be
// owned by exactly one generation run.
package random

import "math/rand"

// Source yields the uniform values the generator draws during placement.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// Intn returns a uniform integer in [0, n). It panics if n <= 0.
	Intn(n int) int
}

type seeded struct {
	rng *rand.Rand
}

// NewSource returns a deterministic source. The same seed always produces
// the same sequence, which makes generation runs reproducible.
func NewSource(seed int64) Source {
	return &seeded{rng: rand.New(rand.NewSource(seed))}
}

func (s *seeded) Float64() float64 { return s.rng.Float64() }
func (s *seeded) Intn(n int) int   { return s.rng.Intn(n) }
