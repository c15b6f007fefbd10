package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lox/greencity/internal/index"
	"github.com/lox/greencity/internal/installation"
	"github.com/lox/greencity/internal/metrics"
	"github.com/lox/greencity/internal/models"
	"github.com/lox/greencity/internal/normalize"
	"github.com/lox/greencity/internal/simulate"
	"github.com/lox/greencity/internal/store"
)

// Collector runs the live daily update: fetch air quality, simulate the
// other dimensions, compute the index and persist every stage.
type Collector struct {
	store  *store.Store
	air    *AirQualityClient
	sims   *simulate.Set
	calc   *index.Calculator
	tree   *installation.Client
	target float64
}

func NewCollector(st *store.Store, air *AirQualityClient, sims *simulate.Set, calc *index.Calculator, target float64) *Collector {
	return &Collector{
		store:  st,
		air:    air,
		sims:   sims,
		calc:   calc,
		target: target,
	}
}

// SetInstallation enables pushing each new index to the tree installation.
func (c *Collector) SetInstallation(tree *installation.Client) {
	c.tree = tree
}

// Collect gathers one day of raw metrics for every dimension. A failed air
// fetch degrades to an all-nil air record.
func (c *Collector) Collect(ctx context.Context, date time.Time) map[models.Dimension]models.RawMetrics {
	raw := c.sims.Current(date)
	raw[models.Air] = c.collectAir(ctx, date)
	return raw
}

func (c *Collector) collectAir(ctx context.Context, date time.Time) models.RawMetrics {
	empty := models.RawMetrics{"pm10": nil, "pm2_5": nil, "no2": nil, "european_aqi": nil}
	if c.air == nil {
		return empty
	}

	day := date.Format(models.DateLayout)
	run, err := c.store.StartIngestRun("open-meteo", "air-quality", day)
	if err != nil {
		log.Printf("collector: start ingest run: %v", err)
	}

	raw, result, err := c.air.FetchDay(ctx, date)

	var flags []string
	if err == nil {
		if flags = ValidateAirQuality(raw); len(flags) > 0 {
			log.Printf("collector: implausible air values for %s: %v", day, flags)
		}
	}

	if run != nil {
		run.Success = err == nil
		if result != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: result.HTTPStatus > 0}
			run.ResponseSizeBytes = sql.NullInt64{Int64: int64(result.ResponseSize), Valid: result.ResponseSize > 0}
		}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		} else {
			run.RecordsStored = sql.NullInt64{Int64: int64(present(raw)), Valid: true}
		}
		if f := QualityFlagsToJSON(flags); f != "" {
			run.QualityFlags = sql.NullString{String: f, Valid: true}
		}
		if result != nil && len(result.Body) > 0 {
			if _, err := c.store.StorePayload(&run.ID, "open-meteo", "air-quality", result.Body); err != nil {
				log.Printf("collector: store air payload: %v", err)
			}
		}
		if err := c.store.CompleteIngestRun(run); err != nil {
			log.Printf("collector: complete ingest run: %v", err)
		}
	}

	if err != nil {
		log.Printf("collector: air quality unavailable for %s, continuing without it: %v", day, err)
		return empty
	}
	return raw
}

// Run performs the full daily update for date and returns the stored record.
func (c *Collector) Run(ctx context.Context, date time.Time) (*models.IndexRecord, error) {
	log.Printf("collector: starting data collection for %s", date.Format(models.DateLayout))
	raw := c.Collect(ctx, date)

	rec, err := c.calc.Compute(date, raw)
	if err != nil {
		return nil, fmt.Errorf("compute index: %w", err)
	}
	metrics.IndexComputed.WithLabelValues("live").Inc()
	for _, d := range models.Dimensions {
		if _, ok := rec.NormalizedMetrics[d].Overall(); !ok {
			log.Printf("collector: warning: no %s metrics could be scored, dimension counts as 0", d)
		}
	}

	if err := c.Persist(rec); err != nil {
		return nil, err
	}

	metrics.LatestOverallScore.Set(rec.OverallScore)
	for d, v := range rec.DimensionScores {
		metrics.LatestDimensionScore.WithLabelValues(string(d)).Set(v)
	}
	log.Printf("collector: index for %s = %.1f %v", rec.Date, rec.OverallScore, rec.DimensionScores)

	if c.tree != nil {
		if err := c.tree.Update(ctx, rec); err != nil {
			log.Printf("collector: installation update failed: %v", err)
		}
	}
	return rec, nil
}

// Persist stores the raw metrics, normalized scores and index row of rec.
// Per-metric write failures are logged; only the index write is fatal.
func (c *Collector) Persist(rec *models.IndexRecord) error {
	collectedAt := rec.Timestamp.UTC()
	failed := 0

	for _, d := range models.Dimensions {
		raw := rec.RawData[d]
		for _, name := range sortedKeys(raw) {
			var value sql.NullFloat64
			if v, ok := raw.Get(name); ok {
				value = sql.NullFloat64{Float64: v, Valid: true}
			}
			if err := c.store.StoreRawMetric(models.RawMetricRow{
				Date:        rec.Date,
				Dimension:   d,
				MetricName:  name,
				Value:       value,
				Unit:        index.Unit(d, name),
				Source:      index.Source(d),
				CollectedAt: collectedAt,
			}); err != nil {
				log.Printf("collector: store raw %s.%s: %v", d, name, err)
				failed++
			}
		}

		norm := rec.NormalizedMetrics[d]
		for _, name := range sortedKeys(norm) {
			if name == models.OverallKey {
				continue
			}
			var rawValue sql.NullFloat64
			if v, ok := raw.Get(name); ok {
				rawValue = sql.NullFloat64{Float64: v, Valid: true}
			}
			if err := c.store.StoreNormalizedScore(models.NormalizedScoreRow{
				Date:              rec.Date,
				Dimension:         d,
				MetricName:        name,
				RawValue:          rawValue,
				NormalizedScore:   norm[name],
				CalculationMethod: normalize.Method,
			}); err != nil {
				log.Printf("collector: store normalized %s.%s: %v", d, name, err)
				failed++
			}
		}
	}
	if failed > 0 {
		log.Printf("collector: %d metric writes failed for %s", failed, rec.Date)
	}

	if err := c.store.UpsertIndex(models.StoredIndex{
		Date:            rec.Date,
		OverallScore:    rec.OverallScore,
		DimensionScores: rec.DimensionScores,
		TargetScore:     sql.NullFloat64{Float64: c.target, Valid: true},
	}); err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	return nil
}

// present counts the metrics of raw that carry a value.
func present(raw models.RawMetrics) int {
	n := 0
	for name := range raw {
		if _, ok := raw.Get(name); ok {
			n++
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
