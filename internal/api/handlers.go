package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lox/greencity/internal/models"
)

type IndexResponse struct {
	Date            string                 `json:"date"`
	OverallScore    float64                `json:"overall_score"`
	Category        string                 `json:"category"`
	DimensionScores models.DimensionScores `json:"dimension_scores"`
	TargetScore     *float64               `json:"target_score,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type MetricResponse struct {
	Dimension       models.Dimension `json:"dimension"`
	Metric          string           `json:"metric"`
	RawValue        *float64         `json:"raw_value"`
	Unit            string           `json:"unit,omitempty"`
	Source          string           `json:"source,omitempty"`
	NormalizedScore *float64         `json:"normalized_score,omitempty"`
}

type IndexDetailResponse struct {
	IndexResponse
	Metrics []MetricResponse `json:"metrics"`
}

// Category buckets a score the way the dashboard colours it.
func Category(score float64) string {
	switch {
	case score >= 70:
		return "good"
	case score >= 40:
		return "moderate"
	default:
		return "poor"
	}
}

// NewIndexResponse converts a stored row into its API representation.
func NewIndexResponse(idx models.StoredIndex) IndexResponse {
	resp := IndexResponse{
		Date:            idx.Date,
		OverallScore:    idx.OverallScore,
		Category:        Category(idx.OverallScore),
		DimensionScores: idx.DimensionScores,
		UpdatedAt:       idx.UpdatedAt,
	}
	if idx.TargetScore.Valid {
		t := idx.TargetScore.Float64
		resp.TargetScore = &t
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleIndex serves the latest index, or with ?days=N the most recent N
// entries in date order.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if days := r.URL.Query().Get("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 1 || n > MaxHistoryDays {
			writeError(w, http.StatusBadRequest, "days must be an integer between 1 and "+strconv.Itoa(MaxHistoryDays))
			return
		}
		rows, err := s.store.GetIndexHistory(n)
		if err != nil {
			log.Printf("api: index history: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to fetch index data")
			return
		}
		out := make([]IndexResponse, len(rows))
		for i, row := range rows {
			out[len(rows)-1-i] = NewIndexResponse(row)
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	latest, err := s.store.GetLatestIndex()
	if err != nil {
		log.Printf("api: latest index: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch index data")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "no index data")
		return
	}
	writeJSON(w, http.StatusOK, NewIndexResponse(*latest))
}

func (s *Server) handleIndexByDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	idx, err := s.store.GetIndex(date)
	if err != nil {
		log.Printf("api: index %s: %v", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch index data")
		return
	}
	if idx == nil {
		writeError(w, http.StatusNotFound, "no index for "+date)
		return
	}

	raw, err := s.store.GetRawMetrics(date)
	if err != nil {
		log.Printf("api: raw metrics %s: %v", date, err)
	}
	normalized, err := s.store.GetNormalizedScores(date)
	if err != nil {
		log.Printf("api: normalized scores %s: %v", date, err)
	}

	scores := make(map[string]float64, len(normalized))
	for _, n := range normalized {
		scores[string(n.Dimension)+"/"+n.MetricName] = n.NormalizedScore
	}

	resp := IndexDetailResponse{IndexResponse: NewIndexResponse(*idx), Metrics: []MetricResponse{}}
	for _, m := range raw {
		mr := MetricResponse{
			Dimension: m.Dimension,
			Metric:    m.MetricName,
			Unit:      m.Unit,
			Source:    m.Source,
		}
		if m.Value.Valid {
			v := m.Value.Float64
			mr.RawValue = &v
		}
		if v, ok := scores[string(m.Dimension)+"/"+m.MetricName]; ok {
			mr.NormalizedScore = &v
		}
		resp.Metrics = append(resp.Metrics, mr)
	}
	writeJSON(w, http.StatusOK, resp)
}

type IngestError struct {
	StartedAt  time.Time `json:"started_at"`
	Source     string    `json:"source"`
	TargetDate string    `json:"target_date,omitempty"`
	HTTPStatus int64     `json:"http_status,omitempty"`
	Message    string    `json:"message"`
}

type HealthStatus struct {
	Status        string        `json:"status"`
	LatestDate    string        `json:"latest_date,omitempty"`
	AgeDays       int           `json:"age_days"`
	Stale         bool          `json:"stale"`
	SchemaVersion int           `json:"schema_version"`
	LastIngestAt  *time.Time    `json:"last_ingest_at,omitempty"`
	LastIngestOK  bool          `json:"last_ingest_ok"`
	RecentErrors  []IngestError `json:"recent_errors"`
	Error         string        `json:"error,omitempty"`
}

// staleAfterDays is how old the newest index may get before health degrades.
const staleAfterDays = 2

const healthErrorLimit = 5

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.GetLatestIndex()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HealthStatus{Status: "error", Error: err.Error()})
		return
	}

	health := HealthStatus{Status: "ok", AgeDays: -1, RecentErrors: []IngestError{}}
	if v, err := s.store.MigrationVersion(); err == nil {
		health.SchemaVersion = v
	} else {
		log.Printf("api: migration version: %v", err)
	}
	if runs, err := s.store.GetRecentIngestRuns(1); err == nil && len(runs) > 0 {
		health.LastIngestAt = &runs[0].StartedAt
		health.LastIngestOK = runs[0].Success
	} else if err != nil {
		log.Printf("api: last ingest run: %v", err)
	}
	if runs, err := s.store.GetRecentIngestErrors(healthErrorLimit); err == nil {
		for _, run := range runs {
			health.RecentErrors = append(health.RecentErrors, IngestError{
				StartedAt:  run.StartedAt,
				Source:     run.Source,
				TargetDate: run.TargetDate.String,
				HTTPStatus: run.HTTPStatus.Int64,
				Message:    run.ErrorMessage.String,
			})
		}
	} else {
		log.Printf("api: recent ingest errors: %v", err)
	}

	if latest == nil {
		health.Status = "degraded"
		health.Stale = true
	} else {
		health.LatestDate = latest.Date
		if d, err := time.Parse(models.DateLayout, latest.Date); err == nil {
			now := s.now().UTC()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			health.AgeDays = int(today.Sub(d).Hours() / 24)
		}
		health.Stale = health.AgeDays < 0 || health.AgeDays > staleAfterDays
		if health.Stale {
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
