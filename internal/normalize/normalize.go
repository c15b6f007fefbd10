// Package normalize maps raw dimension metrics onto a common 0-100 scale.
package normalize

import (
	"fmt"
	"math"

	"github.com/lox/greencity/internal/models"
)

// Method is the calculation-method tag stored with normalized scores.
const Method = "linear_scaling"

// Rule is a two-point linear map: FullAt scores 100, ZeroAt scores 0.
// Direction falls out of the ordering of the two points.
type Rule struct {
	Metric   string
	FullAt   float64
	ZeroAt   float64
	Identity bool // score is the raw value itself
}

func (r Rule) Score(v float64) float64 {
	if r.Identity {
		return clamp(v)
	}
	return clamp(100 * (v - r.ZeroAt) / (r.FullAt - r.ZeroAt))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Rules lists the scoring rules per dimension, in output order.
var Rules = map[models.Dimension][]Rule{
	// Air thresholds are WHO guideline (100) and EU limit (0) pairs.
	models.Air: {
		{Metric: "pm2_5", FullAt: 5, ZeroAt: 25},
		{Metric: "pm10", FullAt: 15, ZeroAt: 40},
		{Metric: "no2", FullAt: 10, ZeroAt: 40},
	},
	models.Water: {
		{Metric: "consumption", FullAt: 100, ZeroAt: 300},
		{Metric: "ili", FullAt: 1.0, ZeroAt: 6.0},
		{Metric: "treatment_compliance", FullAt: 100, ZeroAt: 50},
	},
	models.Nature: {
		{Metric: "protected_area_pct", FullAt: 10, ZeroAt: 0},
		{Metric: "tree_canopy_pct", FullAt: 30, ZeroAt: 5},
		{Metric: "bird_species_change_pct", FullAt: 20, ZeroAt: -20},
	},
	models.Waste: {
		{Metric: "waste_per_capita", FullAt: 0.2, ZeroAt: 0.7},
		{Metric: "recycling_rate", Identity: true},
		{Metric: "landfill_rate", FullAt: 0, ZeroAt: 60},
	},
	models.Noise: {
		{Metric: "lden_exposed_pct", FullAt: 0, ZeroAt: 40},
		{Metric: "lnight_exposed_pct", FullAt: 0, ZeroAt: 40},
		{Metric: "sleep_disturbed_pct", FullAt: 0, ZeroAt: 25},
	},
}

// Normalize scores every present metric of raw that has a rule for dim.
// Missing, nil and NaN metrics are left out of both the result and the
// overall mean. The overall key is absent when nothing was scored.
func Normalize(dim models.Dimension, raw models.RawMetrics) (models.NormalizedMetrics, error) {
	rules, ok := Rules[dim]
	if !ok {
		return nil, fmt.Errorf("normalize: unknown dimension %q", dim)
	}

	out := make(models.NormalizedMetrics, len(rules)+1)
	var sum float64
	for _, rule := range rules {
		v, ok := raw.Get(rule.Metric)
		if !ok || math.IsNaN(v) {
			continue
		}
		score := rule.Score(v)
		out[rule.Metric] = score
		sum += score
	}
	if n := len(out); n > 0 {
		out[models.OverallKey] = sum / float64(n)
	}
	return out, nil
}
