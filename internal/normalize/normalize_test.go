package normalize

import (
	"math"
	"testing"

	"github.com/lox/greencity/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize_Boundaries(t *testing.T) {
	tests := []struct {
		dim    models.Dimension
		metric string
		raw    float64
		want   float64
	}{
		{models.Air, "pm2_5", 5, 100},
		{models.Air, "pm2_5", 25, 0},
		{models.Air, "pm2_5", 15, 50},
		{models.Air, "pm2_5", 100, 0},
		{models.Air, "pm2_5", 2.975, 100},
		{models.Air, "pm10", 15, 100},
		{models.Air, "pm10", 27.5, 50},
		{models.Air, "pm10", 40, 0},
		{models.Air, "no2", 10, 100},
		{models.Air, "no2", 25, 50},
		{models.Air, "no2", 40, 0},
		{models.Water, "consumption", 100, 100},
		{models.Water, "consumption", 200, 50},
		{models.Water, "consumption", 300, 0},
		{models.Water, "ili", 1.0, 100},
		{models.Water, "ili", 3.5, 50},
		{models.Water, "ili", 6.0, 0},
		{models.Water, "treatment_compliance", 100, 100},
		{models.Water, "treatment_compliance", 75, 50},
		{models.Water, "treatment_compliance", 50, 0},
		{models.Water, "treatment_compliance", 20, 0},
		{models.Nature, "protected_area_pct", 10, 100},
		{models.Nature, "protected_area_pct", 5, 50},
		{models.Nature, "protected_area_pct", 0, 0},
		{models.Nature, "protected_area_pct", 14, 100},
		{models.Nature, "tree_canopy_pct", 30, 100},
		{models.Nature, "tree_canopy_pct", 17.5, 50},
		{models.Nature, "tree_canopy_pct", 5, 0},
		{models.Nature, "bird_species_change_pct", 20, 100},
		{models.Nature, "bird_species_change_pct", 0, 50},
		{models.Nature, "bird_species_change_pct", -20, 0},
		{models.Waste, "waste_per_capita", 0.2, 100},
		{models.Waste, "waste_per_capita", 0.45, 50},
		{models.Waste, "waste_per_capita", 0.7, 0},
		{models.Waste, "recycling_rate", 47.2, 47.2},
		{models.Waste, "recycling_rate", 120, 100},
		{models.Waste, "recycling_rate", -3, 0},
		{models.Waste, "landfill_rate", 0, 100},
		{models.Waste, "landfill_rate", 30, 50},
		{models.Waste, "landfill_rate", 60, 0},
		{models.Noise, "lden_exposed_pct", 0, 100},
		{models.Noise, "lden_exposed_pct", 20, 50},
		{models.Noise, "lden_exposed_pct", 40, 0},
		{models.Noise, "lnight_exposed_pct", 10, 75},
		{models.Noise, "sleep_disturbed_pct", 0, 100},
		{models.Noise, "sleep_disturbed_pct", 12.5, 50},
		{models.Noise, "sleep_disturbed_pct", 25, 0},
		{models.Noise, "sleep_disturbed_pct", 50, 0},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.dim, models.RawMetrics{tt.metric: models.Float(tt.raw)})
		if err != nil {
			t.Fatalf("Normalize(%s): %v", tt.dim, err)
		}
		if !approx(got[tt.metric], tt.want) {
			t.Errorf("%s.%s(%v) = %v, want %v", tt.dim, tt.metric, tt.raw, got[tt.metric], tt.want)
		}
		overall, ok := got.Overall()
		if !ok || !approx(overall, tt.want) {
			t.Errorf("%s.%s(%v) overall = %v (%v), want %v", tt.dim, tt.metric, tt.raw, overall, ok, tt.want)
		}
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	for dim, rules := range Rules {
		for _, rule := range rules {
			if rule.Identity {
				continue
			}
			lo, hi := rule.FullAt, rule.ZeroAt
			if lo > hi {
				lo, hi = hi, lo
			}
			higherIsBetter := rule.FullAt > rule.ZeroAt
			prev := rule.Score(lo)
			for i := 1; i <= 20; i++ {
				v := lo + (hi-lo)*float64(i)/20
				s := rule.Score(v)
				if higherIsBetter && s < prev {
					t.Errorf("%s.%s not increasing at %v: %v < %v", dim, rule.Metric, v, s, prev)
				}
				if !higherIsBetter && s > prev {
					t.Errorf("%s.%s not decreasing at %v: %v > %v", dim, rule.Metric, v, s, prev)
				}
				if s < 0 || s > 100 {
					t.Errorf("%s.%s(%v) = %v out of range", dim, rule.Metric, v, s)
				}
				prev = s
			}
		}
	}
}

func TestNormalize_OverallIsMeanOfPresent(t *testing.T) {
	raw := models.RawMetrics{
		"pm2_5":        models.Float(15), // 50
		"pm10":         models.Float(15), // 100
		"no2":          nil,
		"european_aqi": models.Float(38),
	}
	got, err := Normalize(models.Air, raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["no2"]; ok {
		t.Error("nil no2 should be omitted, not scored")
	}
	if _, ok := got["european_aqi"]; ok {
		t.Error("european_aqi has no rule and should be omitted")
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3 (two metrics + overall)", len(got))
	}
	overall, ok := got.Overall()
	if !ok || !approx(overall, 75) {
		t.Errorf("overall = %v (%v), want 75", overall, ok)
	}
}

func TestNormalize_Empty(t *testing.T) {
	for _, dim := range models.Dimensions {
		got, err := Normalize(dim, models.RawMetrics{})
		if err != nil {
			t.Fatalf("Normalize(%s): %v", dim, err)
		}
		if len(got) != 0 {
			t.Errorf("Normalize(%s, empty) = %v, want empty", dim, got)
		}
		if _, ok := got.Overall(); ok {
			t.Errorf("Normalize(%s, empty) has overall", dim)
		}
	}
}

func TestNormalize_AllNil(t *testing.T) {
	got, err := Normalize(models.Air, models.RawMetrics{"pm2_5": nil, "pm10": nil, "no2": nil})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Overall(); ok {
		t.Error("all-nil air record should have no overall")
	}
}

func TestNormalize_UnknownDimension(t *testing.T) {
	if _, err := Normalize(models.Dimension("soil"), models.RawMetrics{}); err == nil {
		t.Error("expected error for unknown dimension")
	}
}

func TestNormalize_NaNIsAbsent(t *testing.T) {
	raw := models.RawMetrics{"pm2_5": models.Float(math.NaN()), "pm10": models.Float(15)}
	got, err := Normalize(models.Air, raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["pm2_5"]; ok {
		t.Errorf("NaN pm2_5 should be left out, got %v", got["pm2_5"])
	}
	if overall, ok := got.Overall(); !ok || overall != 100 {
		t.Errorf("overall = %v (ok=%v), want 100 from pm10 alone", overall, ok)
	}

	got, err = Normalize(models.Air, models.RawMetrics{"no2": models.Float(math.NaN())})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("all-NaN input should score nothing, got %v", got)
	}
}
