package models

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

const DateLayout = "2006-01-02"

type Dimension string

const (
	Air    Dimension = "air"
	Water  Dimension = "water"
	Nature Dimension = "nature"
	Waste  Dimension = "waste"
	Noise  Dimension = "noise"
)

// Dimensions is the closed set of index dimensions in canonical order.
var Dimensions = []Dimension{Air, Water, Nature, Waste, Noise}

func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// RawMetrics holds one dimension's unscaled values for a single day.
// A nil value means the metric was unavailable.
type RawMetrics map[string]*float64

// Get returns the metric value and whether it is present and non-nil.
func (r RawMetrics) Get(name string) (float64, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Float returns a pointer to v, for building RawMetrics literals.
func Float(v float64) *float64 {
	return &v
}

const OverallKey = "overall"

// NormalizedMetrics maps metric names to 0-100 scores plus the synthetic
// "overall" key, which is absent when no metric was scored.
type NormalizedMetrics map[string]float64

func (n NormalizedMetrics) Overall() (float64, bool) {
	v, ok := n[OverallKey]
	return v, ok
}

type DimensionScores map[Dimension]float64

type Weights map[Dimension]float64

func DefaultWeights() Weights {
	return Weights{Air: 0.2, Water: 0.2, Nature: 0.2, Waste: 0.2, Noise: 0.2}
}

// Validate checks that every dimension carries a non-negative weight.
func (w Weights) Validate() error {
	for _, d := range Dimensions {
		v, ok := w[d]
		if !ok {
			return fmt.Errorf("missing weight for %s", d)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("invalid weight for %s: %v", d, v)
		}
	}
	for d := range w {
		if _, err := ParseDimension(string(d)); err != nil {
			return err
		}
	}
	return nil
}

// IndexRecord is one day's computed index with everything it was derived from.
type IndexRecord struct {
	OverallScore      float64                         `json:"overall_score"`
	DimensionScores   DimensionScores                 `json:"dimension_scores"`
	NormalizedMetrics map[Dimension]NormalizedMetrics `json:"normalized_metrics"`
	RawData           map[Dimension]RawMetrics        `json:"raw_data"`
	Timestamp         time.Time                       `json:"timestamp"`
	Date              string                          `json:"date"`
}

// StoredIndex is a green_city_index row.
type StoredIndex struct {
	Date            string
	OverallScore    float64
	DimensionScores DimensionScores
	TargetScore     sql.NullFloat64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RawMetricRow struct {
	Date        string
	Dimension   Dimension
	MetricName  string
	Value       sql.NullFloat64
	Unit        string
	Source      string // "API" or "Simulated"
	CollectedAt time.Time
}

type NormalizedScoreRow struct {
	Date              string
	Dimension         Dimension
	MetricName        string
	RawValue          sql.NullFloat64
	NormalizedScore   float64
	CalculationMethod string
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return RoundTo(v, 1)
}

// RoundTo rounds half to even, so 72.25 becomes 72.2.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
