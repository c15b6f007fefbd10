// Package index combines normalized dimension scores into the Green City Index.
package index

import (
	"fmt"
	"time"

	"github.com/lox/greencity/internal/models"
	"github.com/lox/greencity/internal/normalize"
)

type Calculator struct {
	weights models.Weights
	now     func() time.Time
}

type Option func(*Calculator)

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator returns a calculator using weights as given. Weights are not
// rescaled; callers supply a mapping that sums to whatever they intend.
func NewCalculator(weights models.Weights, opts ...Option) *Calculator {
	c := &Calculator{weights: weights, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Weights() models.Weights {
	return c.weights
}

// Compute normalizes every dimension of raw and builds the index record for
// date. raw must carry all five dimensions and every dimension must have a
// weight. A dimension with nothing to score contributes 0.
func (c *Calculator) Compute(date time.Time, raw map[models.Dimension]models.RawMetrics) (*models.IndexRecord, error) {
	for d := range raw {
		if _, err := models.ParseDimension(string(d)); err != nil {
			return nil, fmt.Errorf("compute index: %w", err)
		}
	}

	rec := &models.IndexRecord{
		DimensionScores:   make(models.DimensionScores, len(models.Dimensions)),
		NormalizedMetrics: make(map[models.Dimension]models.NormalizedMetrics, len(models.Dimensions)),
		RawData:           make(map[models.Dimension]models.RawMetrics, len(models.Dimensions)),
		Timestamp:         c.now(),
		Date:              date.Format(models.DateLayout),
	}

	var overall float64
	for _, d := range models.Dimensions {
		metrics, ok := raw[d]
		if !ok {
			return nil, fmt.Errorf("compute index: missing raw data for %s", d)
		}
		weight, ok := c.weights[d]
		if !ok {
			return nil, fmt.Errorf("compute index: missing weight for %s", d)
		}

		norm, err := normalize.Normalize(d, metrics)
		if err != nil {
			return nil, fmt.Errorf("compute index: %w", err)
		}
		score, _ := norm.Overall()

		overall += weight * score
		rec.DimensionScores[d] = models.Round1(score)
		rec.NormalizedMetrics[d] = norm
		rec.RawData[d] = metrics
	}
	rec.OverallScore = models.Round1(overall)

	return rec, nil
}
