package simulate

import (
	"math"
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/models"
)

const (
	wasteBaselinePerCapita = 0.45 // tonnes/year
	wasteBaselineRecycling = 48.0 // %
	wasteBaselineLandfill  = 5.0  // %

	wasteRecyclingPerDay = 0.003 // ~1% a year
	wasteLandfillPerDay  = 0.001 // ~0.3% a year
	wasteRecyclingCap    = 75.0
	wasteLandfillFloor   = 0.5
)

// Holidays with heavier household waste, as MM-DD.
var wasteHolidays = map[string]bool{
	"01-01": true, // New Year's Day
	"04-09": true, // Easter (approximate)
	"04-10": true,
	"06-05": true, // Constitution Day
	"12-24": true,
	"12-25": true,
	"12-26": true,
	"12-31": true,
}

type WasteState struct {
	DaysPassed int
}

type Waste struct {
	rng   *rand.Rand
	State WasteState
}

func NewWaste(rng *rand.Rand) *Waste {
	return &Waste{rng: rng}
}

func (w *Waste) Current(date time.Time) models.RawMetrics {
	w.State.DaysPassed++

	daily := wasteBaselinePerCapita / 365
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		daily *= 1.15
	}
	if wasteHolidays[date.Format("01-02")] {
		daily *= 1.4
	}
	if m := date.Month(); m >= time.June && m <= time.August {
		daily *= 1.1
	}
	annual := daily * 365

	days := float64(w.State.DaysPassed)
	recycling := math.Min(wasteRecyclingCap, wasteBaselineRecycling+days*wasteRecyclingPerDay)
	landfill := math.Max(wasteLandfillFloor, wasteBaselineLandfill-days*wasteLandfillPerDay)

	return models.RawMetrics{
		"waste_per_capita": rounded(annual*jitter(w.rng, 0.03), 3),
		"recycling_rate":   rounded(recycling*jitter(w.rng, 0.02), 1),
		"landfill_rate":    rounded(landfill*jitter(w.rng, 0.04), 1),
	}
}
