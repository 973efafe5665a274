package twin

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/veridex-labs/veridex/internal/model"
)

// Pet telemetry bounds.
const (
	heartRateMin = 50.0
	heartRateMax = 160.0
	petTempMin   = 37.0
	petTempMax   = 40.5
	activityMin  = 0.0
	activityMax  = 100.0
	weightMin    = 1.0
	weightMax    = 80.0
)

type petVariant struct{}

func (petVariant) assetType() model.AssetType { return model.AssetPet }
func (petVariant) period() time.Duration      { return 10 * time.Second }
func (petVariant) window() int                { return 15 }

func (petVariant) seed(rng *rand.Rand) model.Reading {
	return model.Reading{
		Values: map[string]float64{
			"heart_rate":   80 + rng.Float64()*30,
			"temperature":  38.0 + rng.Float64()*0.8,
			"activity":     30 + rng.Float64()*50,
			"weight_kg":    5 + rng.Float64()*25,
			"hours_rested": 6 + rng.Float64()*4,
		},
	}
}

func (petVariant) step(prev model.Reading, rng *rand.Rand) model.Reading {
	v := prev.Values
	return model.Reading{
		Values: map[string]float64{
			"heart_rate":   walk(v["heart_rate"], 8, heartRateMin, heartRateMax, rng),
			"temperature":  walk(v["temperature"], 0.2, petTempMin, petTempMax, rng),
			"activity":     walk(v["activity"], 10, activityMin, activityMax, rng),
			"weight_kg":    walk(v["weight_kg"], 0.05, weightMin, weightMax, rng),
			"hours_rested": clamp(v["hours_rested"]+(rng.Float64()-0.5), 0, 16),
		},
	}
}

// health applies the fixed pet deduction table to the current reading.
func (petVariant) health(cur model.Reading) float64 {
	score := 100.0
	if hr := cur.Values["heart_rate"]; hr > 130 || hr < 60 {
		score -= 20
	}
	if cur.Values["temperature"] > 39.4 {
		score -= 15
	}
	if cur.Values["activity"] < 15 {
		score -= 10
	}
	if cur.Values["hours_rested"] < 4 {
		score -= 5
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (petVariant) alerts(cur model.Reading) []string {
	var alerts []string
	if hr := cur.Values["heart_rate"]; hr > 130 {
		alerts = append(alerts, fmt.Sprintf("elevated heart rate: %.0f bpm", hr))
	} else if hr < 60 {
		alerts = append(alerts, fmt.Sprintf("depressed heart rate: %.0f bpm", hr))
	}
	if t := cur.Values["temperature"]; t > 39.4 {
		alerts = append(alerts, fmt.Sprintf("fever: %.1f°C", t))
	}
	if cur.Values["activity"] < 15 {
		alerts = append(alerts, "prolonged inactivity")
	}
	return alerts
}

func (petVariant) predictions(cur model.Reading, health float64) map[string]any {
	checkupDue := health < 70
	return map[string]any{
		"vet_checkup_due":  checkupDue,
		"stress_indicator": cur.Values["heart_rate"] > 120 && cur.Values["activity"] < 30,
		"wellness_band":    failureLikelihood(health), // low risk band == healthy
	}
}

func (petVariant) recommendations(cur model.Reading, health float64) []string {
	var recs []string
	if cur.Values["temperature"] > 39.4 {
		recs = append(recs, "schedule veterinary examination")
	}
	if cur.Values["activity"] < 15 {
		recs = append(recs, "increase daily exercise")
	}
	if cur.Values["hours_rested"] < 4 {
		recs = append(recs, "ensure adequate rest")
	}
	if len(recs) == 0 {
		recs = append(recs, "no action required")
	}
	return recs
}
