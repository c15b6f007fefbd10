package simulate

import (
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/models"
)

const (
	waterBaselineConsumption = 105.0 // L/capita/day
	waterBaselineILI         = 2.5
	waterBaselineTreatment   = 98.5 // % UWWTD compliance
)

// Summer demand peaks.
var waterSeasonalConsumption = map[time.Month]float64{
	time.January: 0.9, time.February: 0.9, time.March: 0.95, time.April: 1.0,
	time.May: 1.05, time.June: 1.15, time.July: 1.2, time.August: 1.15,
	time.September: 1.05, time.October: 1.0, time.November: 0.95, time.December: 0.9,
}

type WaterState struct {
	ILIDrift float64
}

type Water struct {
	rng   *rand.Rand
	State WaterState
}

func NewWater(rng *rand.Rand) *Water {
	return &Water{rng: rng}
}

func (w *Water) Current(date time.Time) models.RawMetrics {
	consumption := waterBaselineConsumption * waterSeasonalConsumption[date.Month()] * jitter(w.rng, 0.05)

	// ILI walks slowly with a slight improving bias.
	w.State.ILIDrift += w.rng.NormFloat64()*0.01 - 0.001
	ili := clampRange(waterBaselineILI+w.State.ILIDrift, 1.1, 6.0)

	var dip float64
	if w.rng.Float64() < 0.05 {
		dip = uniform(w.rng, 0.5, 2.0)
	}
	treatment := clampRange(waterBaselineTreatment-dip, 90, 100)

	return models.RawMetrics{
		"consumption":          rounded(consumption, 1),
		"ili":                  rounded(ili, 2),
		"treatment_compliance": rounded(treatment, 1),
	}
}
