// Package simulate produces day-by-day synthetic metrics for the dimensions
// that have no live feed. Each simulator carries mutable state that evolves
// once per Current call, so these are for live collection only; historical
// reconstruction lives in package history and never touches this state.
package simulate

import (
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/models"
)

// Set bundles the four simulators used by the live collection path.
type Set struct {
	Water  *Water
	Nature *Nature
	Waste  *Waste
	Noise  *Noise
}

// NewLive returns simulators sharing one source seeded from the wall clock.
func NewLive() *Set {
	return NewSet(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSet returns simulators drawing from rng.
func NewSet(rng *rand.Rand) *Set {
	return &Set{
		Water:  NewWater(rng),
		Nature: NewNature(rng),
		Waste:  NewWaste(rng),
		Noise:  NewNoise(rng),
	}
}

// Current generates one day of raw metrics for every simulated dimension.
func (s *Set) Current(date time.Time) map[models.Dimension]models.RawMetrics {
	return map[models.Dimension]models.RawMetrics{
		models.Water:  s.Water.Current(date),
		models.Nature: s.Nature.Current(date),
		models.Waste:  s.Waste.Current(date),
		models.Noise:  s.Noise.Current(date),
	}
}

// jitter returns a multiplicative factor in [1-band, 1+band).
func jitter(rng *rand.Rand, band float64) float64 {
	return 1 + (rng.Float64()*2*band - band)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func rounded(v float64, places int) *float64 {
	return models.Float(models.RoundTo(v, places))
}
