package ingest

import (
	"encoding/json"

	"github.com/lox/greencity/internal/models"
)

const (
	FlagPM10OutOfRange = "pm10_out_of_range"
	FlagPM25OutOfRange = "pm2_5_out_of_range"
	FlagNO2OutOfRange  = "no2_out_of_range"
	FlagAQIOutOfRange  = "european_aqi_out_of_range"
)

// airLimits are the plausible daily-mean bounds for each air metric. Values
// outside them are flagged on the ingest run but still scored.
var airLimits = []struct {
	metric string
	min    float64
	max    float64
	flag   string
}{
	{"pm10", 0, 1000, FlagPM10OutOfRange},
	{"pm2_5", 0, 800, FlagPM25OutOfRange},
	{"no2", 0, 1000, FlagNO2OutOfRange},
	{"european_aqi", 0, 500, FlagAQIOutOfRange},
}

// ValidateAirQuality returns a flag for every present metric outside its
// plausible range.
func ValidateAirQuality(raw models.RawMetrics) []string {
	var flags []string
	for _, l := range airLimits {
		v, ok := raw.Get(l.metric)
		if !ok {
			continue
		}
		if v < l.min || v > l.max {
			flags = append(flags, l.flag)
		}
	}
	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
