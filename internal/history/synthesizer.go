// Package history reconstructs past Green City Index values from a fixed
// baseline. Every generated day is a pure function of its date: seasonal,
// trend and calendar-event factors come from static tables and the noise is
// drawn from a source seeded by the date itself.
package history

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/index"
	"github.com/lox/greencity/internal/metrics"
	"github.com/lox/greencity/internal/models"
)

const DefaultNoiseBand = 0.05

type Sampling string

const (
	Daily   Sampling = "daily"
	Weekly  Sampling = "weekly"
	Monthly Sampling = "monthly"
)

func ParseSampling(s string) (Sampling, error) {
	switch Sampling(s) {
	case Daily, Weekly, Monthly:
		return Sampling(s), nil
	}
	return "", fmt.Errorf("unknown sampling %q (want daily, weekly or monthly)", s)
}

// StepDays is the fixed stride between samples. Monthly is a flat 30 days,
// not a calendar month.
func (s Sampling) StepDays() int {
	switch s {
	case Weekly:
		return 7
	case Monthly:
		return 30
	default:
		return 1
	}
}

// Factors are the deterministic multipliers for one dimension on one date.
type Factors struct {
	Seasonal float64
	Trend    float64
	Event    float64
}

func (f Factors) Product() float64 {
	return f.Seasonal * f.Trend * f.Event
}

type Synthesizer struct {
	calc      *index.Calculator
	baseline  Baseline
	seasonal  SeasonalPatterns
	trends    AnnualTrends
	events    SpecialEvents
	now       time.Time
	noiseBand *float64
}

type Option func(*Synthesizer)

// WithNow fixes the reference instant that annual trends are measured from.
func WithNow(now time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

func WithBaseline(b Baseline) Option {
	return func(s *Synthesizer) { s.baseline = b }
}

func WithSeasonalPatterns(p SeasonalPatterns) Option {
	return func(s *Synthesizer) { s.seasonal = p }
}

func WithAnnualTrends(t AnnualTrends) Option {
	return func(s *Synthesizer) { s.trends = t }
}

func WithSpecialEvents(e SpecialEvents) Option {
	return func(s *Synthesizer) { s.events = e }
}

// WithNoiseBand replaces every metric's noise band; zero disables noise.
func WithNoiseBand(band float64) Option {
	return func(s *Synthesizer) { s.noiseBand = &band }
}

func NewSynthesizer(calc *index.Calculator, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		calc:     calc,
		baseline: DefaultBaseline(),
		seasonal: DefaultSeasonalPatterns(),
		trends:   DefaultAnnualTrends(),
		events:   DefaultSpecialEvents(),
		now:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// YearsBetween is whole years plus a fractional month difference.
func YearsBetween(now, date time.Time) float64 {
	return float64(now.Year()-date.Year()) + float64(int(now.Month())-int(date.Month()))/12
}

func (s *Synthesizer) Factors(dim models.Dimension, date time.Time) Factors {
	f := Factors{Seasonal: 1, Trend: 1, Event: 1}
	if v, ok := s.seasonal[dim][date.Month()]; ok {
		f.Seasonal = v
	}
	f.Trend = 1 - s.trends[dim]*YearsBetween(s.now, date)
	if v, ok := s.events[date.Format("01-02")][dim]; ok {
		f.Event = v
	}
	return f
}

// Seed is the noise seed for a calendar day.
func Seed(date time.Time) int64 {
	return calendarDay(date).Unix()
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GenerateForDate builds the raw metrics of every dimension for date.
// Calling it twice with the same day yields identical output.
func (s *Synthesizer) GenerateForDate(date time.Time) map[models.Dimension]models.RawMetrics {
	date = calendarDay(date)
	rng := rand.New(rand.NewSource(Seed(date)))

	out := make(map[models.Dimension]models.RawMetrics, len(models.Dimensions))
	for _, dim := range models.Dimensions {
		f := s.Factors(dim, date)
		raw := make(models.RawMetrics, len(s.baseline[dim]))
		for _, m := range s.baseline[dim] {
			if m.Passthrough {
				raw[m.Name] = models.Float(m.Value)
				continue
			}
			band := s.band(m)
			v := m.Value * f.Seasonal * f.Trend * f.Event
			v *= 1 + (rng.Float64()*2*band - band)
			raw[m.Name] = models.Float(v)
		}
		out[dim] = raw
	}
	return out
}

func (s *Synthesizer) band(m BaselineMetric) float64 {
	if s.noiseBand != nil {
		return *s.noiseBand
	}
	if m.NoiseBand != 0 {
		return m.NoiseBand
	}
	return DefaultNoiseBand
}

// GenerateDataset returns one index record per sampled date from start to
// end inclusive.
func (s *Synthesizer) GenerateDataset(start, end time.Time, sampling Sampling) ([]*models.IndexRecord, error) {
	start, end = calendarDay(start), calendarDay(end)
	step := sampling.StepDays()

	if !end.Before(start) {
		points := int(end.Sub(start).Hours()/24)/step + 1
		log.Printf("history: generating %d %s points from %s to %s",
			points, sampling, start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	var records []*models.IndexRecord
	for d := start; !d.After(end); d = d.AddDate(0, 0, step) {
		rec, err := s.calc.Compute(d, s.GenerateForDate(d))
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", d.Format(models.DateLayout), err)
		}
		rec.Date = d.Format(models.DateLayout)
		records = append(records, rec)
		metrics.IndexComputed.WithLabelValues("historic").Inc()
	}

	log.Printf("history: generated %d historical data points", len(records))
	return records, nil
}
