package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/greencity/internal/metrics"
	"github.com/lox/greencity/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the SQLite database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StoreRawMetric(m models.RawMetricRow) error {
	collectedAt := m.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO raw_metrics (date, dimension, metric_name, value, unit, source, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, dimension, metric_name) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			source = excluded.source,
			collected_at = excluded.collected_at
	`, m.Date, string(m.Dimension), m.MetricName, m.Value, m.Unit, m.Source, collectedAt)
	metrics.RecordWrite("raw_metrics", err)
	return err
}

func (s *Store) GetRawMetrics(date string) ([]models.RawMetricRow, error) {
	rows, err := s.db.Query(`
		SELECT date, dimension, metric_name, value, unit, source, collected_at
		FROM raw_metrics
		WHERE date = ?
		ORDER BY dimension, metric_name
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RawMetricRow
	for rows.Next() {
		var m models.RawMetricRow
		var dim string
		if err := rows.Scan(&m.Date, &dim, &m.MetricName, &m.Value, &m.Unit, &m.Source, &m.CollectedAt); err != nil {
			return nil, err
		}
		m.Dimension = models.Dimension(dim)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) StoreNormalizedScore(n models.NormalizedScoreRow) error {
	_, err := s.db.Exec(`
		INSERT INTO normalized_scores (date, dimension, metric_name, raw_value, normalized_score, calculation_method)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, dimension, metric_name) DO UPDATE SET
			raw_value = excluded.raw_value,
			normalized_score = excluded.normalized_score,
			calculation_method = excluded.calculation_method
	`, n.Date, string(n.Dimension), n.MetricName, n.RawValue, n.NormalizedScore, n.CalculationMethod)
	metrics.RecordWrite("normalized_scores", err)
	return err
}

func (s *Store) GetNormalizedScores(date string) ([]models.NormalizedScoreRow, error) {
	rows, err := s.db.Query(`
		SELECT date, dimension, metric_name, raw_value, normalized_score, calculation_method
		FROM normalized_scores
		WHERE date = ?
		ORDER BY dimension, metric_name
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NormalizedScoreRow
	for rows.Next() {
		var n models.NormalizedScoreRow
		var dim string
		if err := rows.Scan(&n.Date, &dim, &n.MetricName, &n.RawValue, &n.NormalizedScore, &n.CalculationMethod); err != nil {
			return nil, err
		}
		n.Dimension = models.Dimension(dim)
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpsertIndex writes the index row for idx.Date and its per-dimension rows in
// one transaction. All five dimension scores are required.
func (s *Store) UpsertIndex(idx models.StoredIndex) (err error) {
	defer func() { metrics.RecordWrite("green_city_index", err) }()

	if idx.Date == "" {
		return fmt.Errorf("upsert index: missing date")
	}
	scores := make([]float64, len(models.Dimensions))
	for i, d := range models.Dimensions {
		v, ok := idx.DimensionScores[d]
		if !ok {
			return fmt.Errorf("upsert index %s: missing %s score", idx.Date, d)
		}
		scores[i] = v
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`
		INSERT INTO green_city_index (date, overall_score, air_score, water_score, nature_score, waste_score, noise_score, target_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			overall_score = excluded.overall_score,
			air_score = excluded.air_score,
			water_score = excluded.water_score,
			nature_score = excluded.nature_score,
			waste_score = excluded.waste_score,
			noise_score = excluded.noise_score,
			target_score = excluded.target_score,
			updated_at = excluded.updated_at
	`, idx.Date, idx.OverallScore, scores[0], scores[1], scores[2], scores[3], scores[4], idx.TargetScore, now, now); err != nil {
		return fmt.Errorf("upsert index %s: %w", idx.Date, err)
	}

	for i, d := range models.Dimensions {
		if _, err := tx.Exec(`
			INSERT INTO dimension_scores (date, dimension, score)
			VALUES (?, ?, ?)
			ON CONFLICT(date, dimension) DO UPDATE SET score = excluded.score
		`, idx.Date, string(d), scores[i]); err != nil {
			return fmt.Errorf("upsert %s score for %s: %w", d, idx.Date, err)
		}
	}

	return tx.Commit()
}

const indexColumns = `date, overall_score, air_score, water_score, nature_score, waste_score, noise_score, target_score, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIndex(sc scanner) (*models.StoredIndex, error) {
	var idx models.StoredIndex
	var air, water, nature, waste, noise float64
	if err := sc.Scan(&idx.Date, &idx.OverallScore, &air, &water, &nature, &waste, &noise,
		&idx.TargetScore, &idx.CreatedAt, &idx.UpdatedAt); err != nil {
		return nil, err
	}
	idx.DimensionScores = models.DimensionScores{
		models.Air:    air,
		models.Water:  water,
		models.Nature: nature,
		models.Waste:  waste,
		models.Noise:  noise,
	}
	return &idx, nil
}

func (s *Store) GetLatestIndex() (*models.StoredIndex, error) {
	row := s.db.QueryRow(`SELECT ` + indexColumns + ` FROM green_city_index ORDER BY date DESC LIMIT 1`)
	idx, err := scanIndex(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return idx, err
}

func (s *Store) GetIndex(date string) (*models.StoredIndex, error) {
	row := s.db.QueryRow(`SELECT `+indexColumns+` FROM green_city_index WHERE date = ?`, date)
	idx, err := scanIndex(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return idx, err
}

func (s *Store) HasIndex(date string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM green_city_index WHERE date = ?`, date).Scan(&n)
	return n > 0, err
}

// GetIndexHistory returns up to limit index rows, newest first.
func (s *Store) GetIndexHistory(limit int) ([]models.StoredIndex, error) {
	rows, err := s.db.Query(`SELECT `+indexColumns+` FROM green_city_index ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StoredIndex
	for rows.Next() {
		idx, err := scanIndex(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *idx)
	}
	return out, rows.Err()
}

// GetDimensionScores returns nil when no scores are stored for date.
func (s *Store) GetDimensionScores(date string) (models.DimensionScores, error) {
	rows, err := s.db.Query(`SELECT dimension, score FROM dimension_scores WHERE date = ?`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores models.DimensionScores
	for rows.Next() {
		var dim string
		var score float64
		if err := rows.Scan(&dim, &score); err != nil {
			return nil, err
		}
		if scores == nil {
			scores = make(models.DimensionScores)
		}
		scores[models.Dimension(dim)] = score
	}
	return scores, rows.Err()
}
