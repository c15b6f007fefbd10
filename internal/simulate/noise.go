package simulate

import (
	"log"
	"math/rand"
	"time"

	"github.com/lox/greencity/internal/models"
)

const (
	noiseBaselineLden  = 25.0 // % exposed to Lden >= 55 dB
	noiseBaselineNight = 18.0 // % exposed to Lnight >= 50 dB
	noiseBaselineSleep = 8.5  // % highly sleep disturbed

	noiseMinTemp     = 5.0
	noiseMaxTemp     = 25.0
	noiseEventChance = 0.05
	noiseEventFactor = 1.15
	noiseNightFactor = 0.9
)

var trafficFactors = map[time.Weekday]float64{
	time.Monday:    1.1,
	time.Tuesday:   1.05,
	time.Wednesday: 1.05,
	time.Thursday:  1.05,
	time.Friday:    1.15,
	time.Saturday:  0.8,
	time.Sunday:    0.6,
}

var noiseEventTypes = []string{"concert", "construction", "festival", "sports event"}

// Noise has no cross-day state; its randomness is still drawn from the live
// source.
type Noise struct {
	rng *rand.Rand
}

func NewNoise(rng *rand.Rand) *Noise {
	return &Noise{rng: rng}
}

func (n *Noise) Current(date time.Time) models.RawMetrics {
	traffic := trafficFactors[date.Weekday()]
	weather := n.weatherFactor(date.Month())

	event := 1.0
	if n.rng.Float64() < noiseEventChance {
		kind := noiseEventTypes[n.rng.Intn(len(noiseEventTypes))]
		log.Printf("simulate: noise event today: %s", kind)
		event = noiseEventFactor
	}

	lden := noiseBaselineLden * traffic * weather * event
	lnight := noiseBaselineNight * traffic * weather * event * noiseNightFactor
	sleep := noiseBaselineSleep * (lnight / noiseBaselineNight) * uniform(n.rng, 0.95, 1.05)

	return models.RawMetrics{
		"lden_exposed_pct":    rounded(lden, 1),
		"lnight_exposed_pct":  rounded(lnight, 1),
		"sleep_disturbed_pct": rounded(sleep, 1),
	}
}

// weatherFactor rises from 0.9 to 1.1 with temperature, as warmer days mean
// open windows.
func (n *Noise) weatherFactor(month time.Month) float64 {
	var avg float64
	switch {
	case month >= time.March && month <= time.May:
		avg = 8
	case month >= time.June && month <= time.August:
		avg = 18
	case month >= time.September && month <= time.November:
		avg = 10
	default:
		avg = 2
	}
	temp := clampRange(avg+uniform(n.rng, -3, 3), noiseMinTemp, noiseMaxTemp)
	return 0.9 + 0.2*(temp-noiseMinTemp)/(noiseMaxTemp-noiseMinTemp)
}
