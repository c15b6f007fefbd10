package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/greencity/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testIndex(date string, overall float64) models.StoredIndex {
	return models.StoredIndex{
		Date:         date,
		OverallScore: overall,
		DimensionScores: models.DimensionScores{
			models.Air:    90.1,
			models.Water:  60.2,
			models.Nature: 55.3,
			models.Waste:  47.4,
			models.Noise:  30.5,
		},
		TargetScore: sql.NullFloat64{Float64: 70, Valid: true},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertIndex_SecondWriteWins(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertIndex(testIndex("2025-05-05", 56.7)); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}
	second := testIndex("2025-05-05", 61.2)
	second.DimensionScores[models.Noise] = 44.0
	if err := store.UpsertIndex(second); err != nil {
		t.Fatalf("UpsertIndex (second): %v", err)
	}

	history, err := store.GetIndexHistory(10)
	if err != nil {
		t.Fatalf("GetIndexHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].OverallScore != 61.2 {
		t.Errorf("OverallScore = %v, want 61.2", history[0].OverallScore)
	}
	if history[0].DimensionScores[models.Noise] != 44.0 {
		t.Errorf("noise score = %v, want 44.0", history[0].DimensionScores[models.Noise])
	}
	if !history[0].TargetScore.Valid || history[0].TargetScore.Float64 != 70 {
		t.Errorf("TargetScore = %+v, want 70", history[0].TargetScore)
	}

	scores, err := store.GetDimensionScores("2025-05-05")
	if err != nil {
		t.Fatalf("GetDimensionScores: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("len(scores) = %d, want 5", len(scores))
	}
	if scores[models.Noise] != 44.0 {
		t.Errorf("dimension_scores noise = %v, want 44.0", scores[models.Noise])
	}
}

func TestUpsertIndex_MissingDimension(t *testing.T) {
	store := setupTestStore(t)

	idx := testIndex("2025-05-05", 50)
	delete(idx.DimensionScores, models.Water)
	if err := store.UpsertIndex(idx); err == nil {
		t.Fatal("expected error for missing water score")
	}

	got, err := store.GetIndex("2025-05-05")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if got != nil {
		t.Errorf("GetIndex = %+v, want nil after failed upsert", got)
	}
}

func TestGetLatestIndex(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.GetLatestIndex()
	if err != nil {
		t.Fatalf("GetLatestIndex (empty): %v", err)
	}
	if latest != nil {
		t.Fatalf("GetLatestIndex (empty) = %+v, want nil", latest)
	}

	for i, date := range []string{"2025-05-03", "2025-05-05", "2025-05-04"} {
		if err := store.UpsertIndex(testIndex(date, float64(50+i))); err != nil {
			t.Fatalf("UpsertIndex %s: %v", date, err)
		}
	}

	latest, err = store.GetLatestIndex()
	if err != nil {
		t.Fatalf("GetLatestIndex: %v", err)
	}
	if latest == nil || latest.Date != "2025-05-05" {
		t.Fatalf("latest = %+v, want 2025-05-05", latest)
	}
	if latest.OverallScore != 51 {
		t.Errorf("OverallScore = %v, want 51", latest.OverallScore)
	}

	history, err := store.GetIndexHistory(2)
	if err != nil {
		t.Fatalf("GetIndexHistory: %v", err)
	}
	want := []string{"2025-05-05", "2025-05-04"}
	if len(history) != len(want) {
		t.Fatalf("len(history) = %d, want %d", len(history), len(want))
	}
	for i := range want {
		if history[i].Date != want[i] {
			t.Errorf("history[%d].Date = %s, want %s", i, history[i].Date, want[i])
		}
	}

	ok, err := store.HasIndex("2025-05-04")
	if err != nil || !ok {
		t.Errorf("HasIndex(2025-05-04) = %v, %v; want true", ok, err)
	}
	ok, err = store.HasIndex("2025-06-01")
	if err != nil || ok {
		t.Errorf("HasIndex(2025-06-01) = %v, %v; want false", ok, err)
	}
}

func TestStoreRawMetric_Upsert(t *testing.T) {
	store := setupTestStore(t)
	collected := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

	row := models.RawMetricRow{
		Date:        "2025-05-05",
		Dimension:   models.Air,
		MetricName:  "pm2_5",
		Value:       sql.NullFloat64{Float64: 3.1, Valid: true},
		Unit:        "μg/m³",
		Source:      "API",
		CollectedAt: collected,
	}
	if err := store.StoreRawMetric(row); err != nil {
		t.Fatalf("StoreRawMetric: %v", err)
	}
	row.Value = sql.NullFloat64{}
	if err := store.StoreRawMetric(row); err != nil {
		t.Fatalf("StoreRawMetric (second): %v", err)
	}

	rows, err := store.GetRawMetrics("2025-05-05")
	if err != nil {
		t.Fatalf("GetRawMetrics: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Value.Valid {
		t.Errorf("Value = %v, want NULL after second write", rows[0].Value.Float64)
	}
	if rows[0].Unit != "μg/m³" || rows[0].Source != "API" {
		t.Errorf("unit/source = %q/%q", rows[0].Unit, rows[0].Source)
	}
	if !rows[0].CollectedAt.Equal(collected) {
		t.Errorf("CollectedAt = %v, want %v", rows[0].CollectedAt, collected)
	}
}

func TestStoreNormalizedScore_Upsert(t *testing.T) {
	store := setupTestStore(t)

	row := models.NormalizedScoreRow{
		Date:              "2025-05-05",
		Dimension:         models.Waste,
		MetricName:        "recycling_rate",
		RawValue:          sql.NullFloat64{Float64: 47.2, Valid: true},
		NormalizedScore:   47.2,
		CalculationMethod: "linear_scaling",
	}
	if err := store.StoreNormalizedScore(row); err != nil {
		t.Fatalf("StoreNormalizedScore: %v", err)
	}
	row.NormalizedScore = 48.0
	if err := store.StoreNormalizedScore(row); err != nil {
		t.Fatalf("StoreNormalizedScore (second): %v", err)
	}

	rows, err := store.GetNormalizedScores("2025-05-05")
	if err != nil {
		t.Fatalf("GetNormalizedScores: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].NormalizedScore != 48.0 {
		t.Errorf("NormalizedScore = %v, want 48.0", rows[0].NormalizedScore)
	}
	if rows[0].Dimension != models.Waste {
		t.Errorf("Dimension = %s, want waste", rows[0].Dimension)
	}
}

func TestIngestRun_Lifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartIngestRun("open-meteo", "air-quality", "2025-05-05")
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	run.HTTPStatus = sql.NullInt64{Int64: 500, Valid: true}
	run.ErrorMessage = sql.NullString{String: "server error", Valid: true}
	if err := store.CompleteIngestRun(run); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	errs, err := store.GetRecentIngestErrors(5)
	if err != nil {
		t.Fatalf("GetRecentIngestErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if errs[0].ErrorMessage.String != "server error" || errs[0].TargetDate.String != "2025-05-05" {
		t.Errorf("run = %+v", errs[0])
	}
	if !errs[0].FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}
}

func TestStorePayload_Dedup(t *testing.T) {
	store := setupTestStore(t)

	payload := []byte(`{"hourly":{"pm10":[1,2,3]}}`)
	id, err := store.StorePayload(nil, "open-meteo", "air-quality", payload)
	if err != nil {
		t.Fatalf("StorePayload: %v", err)
	}
	if id == 0 {
		t.Fatal("first StorePayload returned id 0")
	}

	dup, err := store.StorePayload(nil, "open-meteo", "air-quality", payload)
	if err != nil {
		t.Fatalf("StorePayload (dup): %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate id = %d, want 0", dup)
	}

	other, err := store.StorePayload(nil, "open-meteo", "air-quality", []byte(`{}`))
	if err != nil {
		t.Fatalf("StorePayload (other): %v", err)
	}
	if other == 0 || other == id {
		t.Errorf("distinct payload id = %d, want a new row", other)
	}
}
