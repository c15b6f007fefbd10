package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/greencity/internal/models"
)

const DefaultOutputDir = "data/processed"

// DefaultFilename is the export name used when none is given.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("green_city_index_history_%s.json", now.Format("20060102"))
}

// SaveJSON writes records as an indented JSON array to dir/name, creating
// dir if needed. It returns the written path.
func SaveJSON(dir, name string, records []*models.IndexRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if records == nil {
		records = []*models.IndexRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("history: saved %d records to %s", len(records), path)
	return path, nil
}

// ImportRecord is the subset of an exported record needed to restore the
// index table. Pointer fields distinguish absent from zero.
type ImportRecord struct {
	Date            *string                `json:"date"`
	OverallScore    *float64               `json:"overall_score"`
	DimensionScores models.DimensionScores `json:"dimension_scores"`
}

func (r ImportRecord) complete() bool {
	return r.Date != nil && *r.Date != "" && r.OverallScore != nil && r.DimensionScores != nil
}

func LoadJSON(path string) ([]ImportRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []ImportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// IndexStore is where bulk loads write index rows.
type IndexStore interface {
	UpsertIndex(models.StoredIndex) error
}

// LoadIntoStore upserts every complete record. Incomplete records are skipped
// and failing records are logged; neither stops the batch. It returns the
// number of records stored.
func LoadIntoStore(st IndexStore, records []ImportRecord, target float64) int {
	stored := 0
	for i, r := range records {
		if !r.complete() {
			log.Printf("history: skipping record %d: missing date, overall_score or dimension_scores", i)
			continue
		}
		err := st.UpsertIndex(models.StoredIndex{
			Date:            *r.Date,
			OverallScore:    *r.OverallScore,
			DimensionScores: r.DimensionScores,
			TargetScore:     sql.NullFloat64{Float64: target, Valid: true},
		})
		if err != nil {
			log.Printf("history: store %s: %v", *r.Date, err)
			continue
		}
		stored++
	}
	log.Printf("history: stored %d of %d records", stored, len(records))
	return stored
}

// SaveToStore persists generated records with the same semantics as
// LoadIntoStore.
func SaveToStore(st IndexStore, records []*models.IndexRecord, target float64) int {
	imports := make([]ImportRecord, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			imports = append(imports, ImportRecord{})
			continue
		}
		date, overall := rec.Date, rec.OverallScore
		imports = append(imports, ImportRecord{
			Date:            &date,
			OverallScore:    &overall,
			DimensionScores: rec.DimensionScores,
		})
	}
	return LoadIntoStore(st, imports, target)
}
