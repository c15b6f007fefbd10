package simulate

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/models"
)

const (
	natureBaselineProtected = 8.5  // % of city area
	natureBaselineCanopy    = 19.3 // % tree coverage
	natureBaselineBirds     = 112  // species in the urban area
	natureDailyCanopyGrowth = 0.0003
)

type natureEvent struct {
	Description  string
	CanopyPct    float64
	ProtectedPct float64
}

// Dated one-off events, keyed by full calendar date.
var natureEvents = map[string]natureEvent{
	"2025-05-21": {Description: "City-wide tree planting day", CanopyPct: 0.2},
	"2025-06-15": {Description: "New nature reserve opening", CanopyPct: 0.1, ProtectedPct: 0.3},
}

type NatureState struct {
	CumulativeCanopy    float64
	CumulativeProtected float64
}

type Nature struct {
	rng   *rand.Rand
	State NatureState
}

func NewNature(rng *rand.Rand) *Nature {
	return &Nature{rng: rng}
}

func (n *Nature) Current(date time.Time) models.RawMetrics {
	if ev, ok := natureEvents[date.Format(models.DateLayout)]; ok {
		log.Printf("simulate: nature event today: %s", ev.Description)
		n.State.CumulativeCanopy += ev.CanopyPct
		n.State.CumulativeProtected += ev.ProtectedPct
	}
	n.State.CumulativeCanopy += natureDailyCanopyGrowth

	count, change := n.birdSpecies(date)

	return models.RawMetrics{
		"protected_area_pct":      rounded(natureBaselineProtected+n.State.CumulativeProtected, 2),
		"tree_canopy_pct":         rounded(natureBaselineCanopy+n.State.CumulativeCanopy, 2),
		"bird_species_count":      models.Float(count),
		"bird_species_change_pct": rounded(change, 1),
	}
}

// birdSpecies peaks in late spring and summer.
func (n *Nature) birdSpecies(date time.Time) (count, changePct float64) {
	seasonal := 0.85 + 0.3*math.Sin(float64(date.YearDay()-100)*2*math.Pi/365)
	count = math.Round(natureBaselineBirds * seasonal * jitter(n.rng, 0.05))
	changePct = (count - natureBaselineBirds) / natureBaselineBirds * 100
	return count, changePct
}
