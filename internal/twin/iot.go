package twin

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/veridex-labs/veridex/internal/model"
)

// IoT device telemetry bounds.
const (
	iotBatteryMin = 0.0
	iotBatteryMax = 100.0
	signalMin     = -95.0
	signalMax     = -40.0
	iotTempMin    = 5.0
	iotTempMax    = 50.0
)

type iotVariant struct{}

func (iotVariant) assetType() model.AssetType { return model.AssetIoT }
func (iotVariant) period() time.Duration      { return 8 * time.Second }
func (iotVariant) window() int                { return 12 }

func (iotVariant) seed(rng *rand.Rand) model.Reading {
	return model.Reading{
		Values: map[string]float64{
			"battery_pct":  70 + rng.Float64()*30,
			"signal_dbm":   -70 + rng.Float64()*20,
			"temperature":  20 + rng.Float64()*10,
			"uptime_hours": rng.Float64() * 1000,
			"error_count":  0,
		},
	}
}

func (iotVariant) step(prev model.Reading, rng *rand.Rand) model.Reading {
	v := prev.Values
	errors := v["error_count"]
	// Errors accumulate rarely and reset on simulated device restart.
	if rng.Float64() < 0.08 {
		errors++
	}
	if rng.Float64() < 0.02 {
		errors = 0
	}
	return model.Reading{
		Values: map[string]float64{
			"battery_pct":  clamp(v["battery_pct"]-rng.Float64()*0.5, iotBatteryMin, iotBatteryMax),
			"signal_dbm":   walk(v["signal_dbm"], 4, signalMin, signalMax, rng),
			"temperature":  walk(v["temperature"], 1.5, iotTempMin, iotTempMax, rng),
			"uptime_hours": v["uptime_hours"] + 0.01,
			"error_count":  errors,
		},
	}
}

// health applies the fixed IoT deduction table to the current reading.
func (iotVariant) health(cur model.Reading) float64 {
	score := 100.0
	if cur.Values["battery_pct"] < 20 {
		score -= 20
	}
	if cur.Values["signal_dbm"] < -85 {
		score -= 15
	}
	if cur.Values["temperature"] > 40 {
		score -= 10
	}
	if cur.Values["error_count"] > 3 {
		score -= 5
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (iotVariant) alerts(cur model.Reading) []string {
	var alerts []string
	if b := cur.Values["battery_pct"]; b < 20 {
		alerts = append(alerts, fmt.Sprintf("battery critical: %.0f%%", b))
	}
	if s := cur.Values["signal_dbm"]; s < -85 {
		alerts = append(alerts, fmt.Sprintf("weak signal: %.0f dBm", s))
	}
	if t := cur.Values["temperature"]; t > 40 {
		alerts = append(alerts, fmt.Sprintf("overtemperature: %.1f°C", t))
	}
	if e := cur.Values["error_count"]; e > 3 {
		alerts = append(alerts, fmt.Sprintf("error count elevated: %.0f", e))
	}
	return alerts
}

func (iotVariant) predictions(cur model.Reading, health float64) map[string]any {
	// Battery drains at most ~0.5%/tick; project days remaining at the
	// mean drain rate of 0.25%/tick.
	ticksLeft := cur.Values["battery_pct"] / 0.25
	daysLeft := ticksLeft * 8 / 86_400 // 8s period, coarse estimate
	return map[string]any{
		"battery_days_remaining": daysLeft,
		"connectivity_risk":      cur.Values["signal_dbm"] < -80,
		"failure_likelihood":     failureLikelihood(health),
	}
}

func (iotVariant) recommendations(cur model.Reading, health float64) []string {
	var recs []string
	if cur.Values["battery_pct"] < 20 {
		recs = append(recs, "replace or recharge battery")
	}
	if cur.Values["signal_dbm"] < -85 {
		recs = append(recs, "relocate device or add repeater")
	}
	if cur.Values["temperature"] > 40 {
		recs = append(recs, "improve ventilation at install site")
	}
	if cur.Values["error_count"] > 3 {
		recs = append(recs, "schedule firmware diagnostic")
	}
	if len(recs) == 0 {
		recs = append(recs, "no action required")
	}
	return recs
}
