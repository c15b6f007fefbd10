package history

import (
	"time"

	"github.com/lox/greencity/internal/models"
)

// BaselineMetric is one metric of the fixed baseline record. Passthrough
// metrics are categorical and copied unchanged. NoiseBand overrides the
// default ±5% noise when non-zero.
type BaselineMetric struct {
	Name        string
	Value       float64
	Passthrough bool
	NoiseBand   float64
}

// Baseline is an ordered baseline record per dimension. Order matters: noise
// is drawn from the date-seeded source in this order.
type Baseline map[models.Dimension][]BaselineMetric

// DefaultBaseline is a real collection day (2025-05-05) for Aarhus.
func DefaultBaseline() Baseline {
	return Baseline{
		models.Air: {
			{Name: "pm10", Value: 4.995833333333333},
			{Name: "pm2_5", Value: 2.975},
			{Name: "no2", Value: 3.983333333333333},
			{Name: "european_aqi", Value: 38},
		},
		models.Water: {
			{Name: "consumption", Value: 108.4},
			{Name: "ili", Value: 2.51},
			{Name: "treatment_compliance", Value: 98.5},
		},
		models.Nature: {
			{Name: "protected_area_pct", Value: 8.5},
			{Name: "tree_canopy_pct", Value: 19.3},
			{Name: "bird_species_count", Value: 114},
			{Name: "bird_species_change_pct", Value: 1.8},
		},
		models.Waste: {
			{Name: "waste_per_capita", Value: 0.453},
			{Name: "recycling_rate", Value: 47.2},
			{Name: "landfill_rate", Value: 5.1},
		},
		models.Noise: {
			{Name: "lden_exposed_pct", Value: 26.2},
			{Name: "lnight_exposed_pct", Value: 17.0},
			{Name: "sleep_disturbed_pct", Value: 7.7},
		},
	}
}

// SeasonalPatterns holds a multiplier per month per dimension.
type SeasonalPatterns map[models.Dimension]map[time.Month]float64

func DefaultSeasonalPatterns() SeasonalPatterns {
	// Air is worse with winter heating, nature peaks in spring and summer,
	// waste rises over the holidays.
	return SeasonalPatterns{
		models.Air:    monthly(0.85, 0.88, 0.92, 0.95, 1.00, 1.05, 1.08, 1.05, 1.00, 0.95, 0.90, 0.85),
		models.Water:  monthly(1.05, 1.00, 0.95, 0.90, 0.85, 0.80, 0.75, 0.80, 0.85, 0.90, 0.95, 1.05),
		models.Nature: monthly(0.75, 0.80, 0.90, 1.05, 1.15, 1.20, 1.20, 1.15, 1.05, 0.95, 0.85, 0.75),
		models.Waste:  monthly(1.10, 0.98, 0.95, 0.92, 0.90, 0.95, 1.00, 1.05, 0.98, 0.95, 1.05, 1.20),
		models.Noise:  monthly(0.90, 0.90, 0.95, 1.00, 1.05, 1.10, 1.15, 1.10, 1.05, 1.00, 0.95, 0.90),
	}
}

func monthly(factors ...float64) map[time.Month]float64 {
	m := make(map[time.Month]float64, len(factors))
	for i, f := range factors {
		m[time.Month(i+1)] = f
	}
	return m
}

// AnnualTrends is the fractional yearly improvement per dimension.
type AnnualTrends map[models.Dimension]float64

func DefaultAnnualTrends() AnnualTrends {
	return AnnualTrends{
		models.Air:    0.03,
		models.Water:  0.025,
		models.Nature: 0.01,
		models.Waste:  0.02,
		models.Noise:  0.015,
	}
}

// SpecialEvents maps an MM-DD key to per-dimension impact factors,
// applied regardless of year.
type SpecialEvents map[string]map[models.Dimension]float64

func DefaultSpecialEvents() SpecialEvents {
	return SpecialEvents{
		"01-01": {models.Waste: 1.3, models.Noise: 1.3}, // New Year's Day
		"04-22": {models.Nature: 1.15},                  // Earth Day
		"06-05": {models.Air: 1.1, models.Nature: 1.1},  // World Environment Day
		"12-24": {models.Waste: 1.4, models.Noise: 0.8}, // Christmas Eve
		"12-25": {models.Waste: 1.3, models.Noise: 0.8}, // Christmas Day
	}
}
