// Package installation drives the physical tree artwork from index scores.
package installation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/lox/greencity/internal/httputil"
	"github.com/lox/greencity/internal/models"
)

type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

type Seasonal struct {
	Type      string  `json:"seasonal_type"`
	Intensity float64 `json:"intensity"`
}

// Params is the appearance payload sent to the installation.
type Params struct {
	FoliageDensity   float64                       `json:"foliage_density"`
	LeafColor        Color                         `json:"leaf_color"`
	BranchVisibility float64                       `json:"branch_visibility"`
	DimensionEffects map[string]map[string]float64 `json:"dimension_effects"`
	InstallationID   string                        `json:"installation_id"`
	Timestamp        time.Time                     `json:"timestamp"`
	SeasonalElements Seasonal                      `json:"seasonal_elements"`
}

// MapParams converts scores into tree appearance. Higher scores mean denser,
// greener foliage and fewer visible branches.
func MapParams(overall float64, scores models.DimensionScores, now time.Time, id string) Params {
	return Params{
		FoliageDensity:   overall,
		LeafColor:        LeafColor(overall),
		BranchVisibility: math.Max(0, 100-overall),
		DimensionEffects: DimensionEffects(scores),
		InstallationID:   id,
		Timestamp:        now,
		SeasonalElements: SeasonalElements(now),
	}
}

// LeafColor is vivid green from 80, fades to yellow-green down to 50 and to
// brown below that.
func LeafColor(score float64) Color {
	switch {
	case score >= 80:
		return Color{R: 100, G: 220, B: 100}
	case score >= 50:
		yellow := (80 - score) / 30
		return Color{
			R: int(100 + yellow*155),
			G: int(220 - yellow*70),
			B: int(100 - yellow*70),
		}
	default:
		brown := (50 - score) / 50
		return Color{
			R: int(180 - brown*40),
			G: int(150 - brown*70),
			B: 30,
		}
	}
}

func DimensionEffects(s models.DimensionScores) map[string]map[string]float64 {
	frac := func(d models.Dimension) float64 { return s[d] / 100 }
	inverse := func(d models.Dimension) float64 { return math.Max(0, 100-s[d]) / 100 }

	return map[string]map[string]float64{
		"air_effects": {
			"mist_density":  frac(models.Air),
			"air_particles": inverse(models.Air),
		},
		"water_effects": {
			"droplet_frequency": frac(models.Water),
			"ground_moisture":   frac(models.Water),
		},
		"nature_effects": {
			"bird_presence":      frac(models.Nature),
			"surrounding_plants": frac(models.Nature),
		},
		"waste_effects": {
			"ground_cleanliness":  frac(models.Waste),
			"recyclable_elements": frac(models.Waste),
		},
		"noise_effects": {
			"ambient_sound_level": inverse(models.Noise),
			"nature_sounds":       frac(models.Noise),
		},
	}
}

func SeasonalElements(now time.Time) Seasonal {
	switch m := now.Month(); {
	case m >= time.March && m <= time.May:
		return Seasonal{Type: "spring_bloom", Intensity: 0.8}
	case m >= time.June && m <= time.August:
		return Seasonal{Type: "summer_fullness", Intensity: 1.0}
	case m >= time.September && m <= time.November:
		return Seasonal{Type: "fall_colors", Intensity: 0.9}
	case m == time.December && now.Day() >= 15:
		return Seasonal{Type: "winter_holiday", Intensity: 0.7}
	default:
		return Seasonal{Type: "winter_sparse", Intensity: 0.4}
	}
}

type Client struct {
	baseURL string
	id      string
	client  *http.Client
	now     func() time.Time
}

func NewClient(baseURL, installationID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		id:      installationID,
		client:  httputil.NewClientWithTimeout(10 * time.Second),
		now:     time.Now,
	}
}

// Update posts the appearance for rec to {baseURL}/update.
func (c *Client) Update(ctx context.Context, rec *models.IndexRecord) error {
	params := MapParams(rec.OverallScore, rec.DimensionScores, c.now(), c.id)
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.baseURL+"/update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update installation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("update installation: status %d: %s", resp.StatusCode, string(b))
	}
	log.Printf("installation: updated %s (foliage %.1f, %s)", c.id, params.FoliageDensity, params.SeasonalElements.Type)
	return nil
}
