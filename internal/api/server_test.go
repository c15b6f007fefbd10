package api_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lox/greencity/internal/api"
	"github.com/lox/greencity/internal/models"
	"github.com/lox/greencity/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func seedIndex(t *testing.T, s *store.Store, date string, overall float64) {
	t.Helper()
	idx := models.StoredIndex{
		Date:         date,
		OverallScore: overall,
		DimensionScores: models.DimensionScores{
			models.Air:    overall,
			models.Water:  overall,
			models.Nature: overall,
			models.Waste:  overall,
			models.Noise:  overall,
		},
		TargetScore: sql.NullFloat64{Float64: 70, Valid: true},
	}
	if err := s.UpsertIndex(idx); err != nil {
		t.Fatalf("seed %s: %v", date, err)
	}
}

func get(t *testing.T, srv *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint_NoData(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), ":0")

	w := get(t, srv, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no data, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("expected degraded status, got %s", w.Body.String())
	}
}

func TestHealthEndpoint_Fresh(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedIndex(t, s, time.Now().UTC().Format(models.DateLayout), 55)
	srv := api.NewServer(s, ":0")

	w := get(t, srv, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var health api.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Stale || health.AgeDays != 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestHealthEndpoint_ReportsIngestErrors(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedIndex(t, s, time.Now().UTC().Format(models.DateLayout), 55)

	run, err := s.StartIngestRun("open-meteo", "air-quality", "2025-05-05")
	if err != nil {
		t.Fatal(err)
	}
	run.HTTPStatus = sql.NullInt64{Int64: 502, Valid: true}
	run.ErrorMessage = sql.NullString{String: "bad gateway", Valid: true}
	if err := s.CompleteIngestRun(run); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, ":0")

	w := get(t, srv, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var health api.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.SchemaVersion != 2 {
		t.Errorf("schema version = %d, want 2", health.SchemaVersion)
	}
	if health.LastIngestAt == nil || health.LastIngestOK {
		t.Errorf("last ingest = %v ok=%v, want the failed run", health.LastIngestAt, health.LastIngestOK)
	}
	if len(health.RecentErrors) != 1 {
		t.Fatalf("recent errors = %+v, want 1", health.RecentErrors)
	}
	e := health.RecentErrors[0]
	if e.HTTPStatus != 502 || e.Message != "bad gateway" || e.TargetDate != "2025-05-05" {
		t.Errorf("recent error = %+v", e)
	}
}

func TestIndexEndpoint_Latest(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedIndex(t, s, "2025-05-03", 35)
	seedIndex(t, s, "2025-05-05", 72.4)
	seedIndex(t, s, "2025-05-04", 50)
	srv := api.NewServer(s, ":0")

	w := get(t, srv, "/api/index")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.IndexResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Date != "2025-05-05" || resp.OverallScore != 72.4 || resp.Category != "good" {
		t.Errorf("latest = %+v", resp)
	}
	if resp.TargetScore == nil || *resp.TargetScore != 70 {
		t.Errorf("target = %v, want 70", resp.TargetScore)
	}
	if resp.DimensionScores[models.Noise] != 72.4 {
		t.Errorf("dimension scores = %v", resp.DimensionScores)
	}
}

func TestIndexEndpoint_NoData(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), ":0")

	if w := get(t, srv, "/api/index"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestIndexEndpoint_Days(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedIndex(t, s, "2025-05-01", 30)
	seedIndex(t, s, "2025-05-02", 45)
	seedIndex(t, s, "2025-05-03", 80)
	srv := api.NewServer(s, ":0")

	w := get(t, srv, "/api/index?days=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []api.IndexResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 {
		t.Fatalf("got %d entries, want 2", len(resp))
	}
	if resp[0].Date != "2025-05-02" || resp[1].Date != "2025-05-03" {
		t.Errorf("dates = %s, %s; want ascending last two", resp[0].Date, resp[1].Date)
	}
	if resp[0].Category != "moderate" || resp[1].Category != "good" {
		t.Errorf("categories = %s, %s", resp[0].Category, resp[1].Category)
	}
}

func TestIndexEndpoint_InvalidDays(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), ":0")

	for _, q := range []string{"abc", "0", "-3", "99999"} {
		if w := get(t, srv, "/api/index?days="+q); w.Code != http.StatusBadRequest {
			t.Errorf("days=%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestIndexByDate(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seedIndex(t, s, "2025-05-05", 61)
	if err := s.StoreRawMetric(models.RawMetricRow{
		Date:       "2025-05-05",
		Dimension:  models.Air,
		MetricName: "pm2_5",
		Value:      sql.NullFloat64{Float64: 3, Valid: true},
		Unit:       "μg/m³",
		Source:     "API",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreRawMetric(models.RawMetricRow{
		Date:       "2025-05-05",
		Dimension:  models.Air,
		MetricName: "no2",
		Unit:       "μg/m³",
		Source:     "API",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreNormalizedScore(models.NormalizedScoreRow{
		Date:              "2025-05-05",
		Dimension:         models.Air,
		MetricName:        "pm2_5",
		RawValue:          sql.NullFloat64{Float64: 3, Valid: true},
		NormalizedScore:   100,
		CalculationMethod: "linear_scaling",
	}); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, ":0")

	w := get(t, srv, "/api/index/2025-05-05")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.IndexDetailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Date != "2025-05-05" || resp.Category != "moderate" {
		t.Errorf("index = %+v", resp.IndexResponse)
	}
	if len(resp.Metrics) != 2 {
		t.Fatalf("got %d metrics, want 2", len(resp.Metrics))
	}
	for _, m := range resp.Metrics {
		switch m.Metric {
		case "pm2_5":
			if m.RawValue == nil || *m.RawValue != 3 || m.NormalizedScore == nil || *m.NormalizedScore != 100 {
				t.Errorf("pm2_5 = %+v", m)
			}
		case "no2":
			if m.RawValue != nil || m.NormalizedScore != nil {
				t.Errorf("no2 should have no values, got %+v", m)
			}
		default:
			t.Errorf("unexpected metric %s", m.Metric)
		}
	}
}

func TestIndexByDate_Errors(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), ":0")

	tests := []struct {
		path string
		code int
	}{
		{"/api/index/2025-13-01", http.StatusBadRequest},
		{"/api/index/yesterday", http.StatusBadRequest},
		{"/api/index/2025-05-05", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := get(t, srv, tt.path); w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), ":0")

	w := get(t, srv, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "good"},
		{70, "good"},
		{69.9, "moderate"},
		{40, "moderate"},
		{39.9, "poor"},
		{0, "poor"},
	}
	for _, tt := range tests {
		if got := api.Category(tt.score); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
