package index

import "github.com/lox/greencity/internal/models"

var units = map[models.Dimension]map[string]string{
	models.Air: {
		"pm10":         "μg/m³",
		"pm2_5":        "μg/m³",
		"no2":          "μg/m³",
		"european_aqi": "index",
	},
	models.Water: {
		"consumption":          "L/capita/day",
		"ili":                  "ratio",
		"treatment_compliance": "%",
	},
	models.Nature: {
		"protected_area_pct":      "%",
		"tree_canopy_pct":         "%",
		"bird_species_count":      "count",
		"bird_species_change_pct": "%",
	},
	models.Waste: {
		"waste_per_capita": "tonnes/year",
		"recycling_rate":   "%",
		"landfill_rate":    "%",
	},
	models.Noise: {
		"lden_exposed_pct":    "%",
		"lnight_exposed_pct":  "%",
		"sleep_disturbed_pct": "%",
	},
}

// Unit returns the unit of a metric, or "" if unknown.
func Unit(dim models.Dimension, metric string) string {
	return units[dim][metric]
}

// Source returns the source tag recorded with raw metrics of dim.
func Source(dim models.Dimension) string {
	if dim == models.Air {
		return "API"
	}
	return "Simulated"
}
