package twin

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/veridex-labs/veridex/internal/model"
)

// Vehicle telemetry bounds.
const (
	engineTempMin = 50.0
	engineTempMax = 120.0
	oilPressMin   = 15.0
	oilPressMax   = 60.0
	batteryMin    = 11.8
	batteryMax    = 14.2
	fuelMin       = 0.0
	fuelMax       = 100.0

	serviceIntervalKm = 10_000.0
)

// diagnosticCodes is the pool of synthetic OBD codes a vehicle twin can
// raise.
var diagnosticCodes = []string{"P0420", "P0171", "P0300", "C1201"}

type vehicleVariant struct{}

func (vehicleVariant) assetType() model.AssetType { return model.AssetVehicle }
func (vehicleVariant) period() time.Duration      { return 5 * time.Second }
func (vehicleVariant) window() int                { return 20 }

func (vehicleVariant) seed(rng *rand.Rand) model.Reading {
	return model.Reading{
		Values: map[string]float64{
			"engine_temp":     80 + rng.Float64()*10,
			"oil_pressure":    35 + rng.Float64()*10,
			"battery_voltage": 12.6 + rng.Float64()*0.8,
			"fuel_level":      40 + rng.Float64()*50,
			"odometer_km":     10_000 + rng.Float64()*90_000,
		},
	}
}

func (vehicleVariant) step(prev model.Reading, rng *rand.Rand) model.Reading {
	v := prev.Values
	next := model.Reading{
		Values: map[string]float64{
			"engine_temp":     walk(v["engine_temp"], 4, engineTempMin, engineTempMax, rng),
			"oil_pressure":    walk(v["oil_pressure"], 3, oilPressMin, oilPressMax, rng),
			"battery_voltage": walk(v["battery_voltage"], 0.15, batteryMin, batteryMax, rng),
			"fuel_level":      clamp(v["fuel_level"]-rng.Float64()*0.8, fuelMin, fuelMax),
			"odometer_km":     v["odometer_km"] + rng.Float64()*1.5,
		},
	}

	// Diagnostic codes persist across ticks; each tick may raise a new one
	// or clear an existing one.
	codes := append([]string(nil), prev.Codes...)
	if len(codes) < len(diagnosticCodes) && rng.Float64() < 0.05 {
		candidate := diagnosticCodes[rng.Intn(len(diagnosticCodes))]
		if !containsCode(codes, candidate) {
			codes = append(codes, candidate)
		}
	}
	if len(codes) > 0 && rng.Float64() < 0.1 {
		codes = codes[1:]
	}
	next.Codes = codes
	return next
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// health applies the fixed vehicle deduction table to the current reading.
func (vehicleVariant) health(cur model.Reading) float64 {
	score := 100.0
	if cur.Values["engine_temp"] > 100 {
		score -= 20
	}
	if cur.Values["oil_pressure"] < 25 {
		score -= 15
	}
	if cur.Values["battery_voltage"] < 12.0 {
		score -= 10
	}
	score -= 5 * float64(len(cur.Codes))
	if score < 0 {
		score = 0
	}
	return score
}

func (vehicleVariant) alerts(cur model.Reading) []string {
	var alerts []string
	if cur.Values["engine_temp"] > 100 {
		alerts = append(alerts, fmt.Sprintf("engine overheating: %.1f°C", cur.Values["engine_temp"]))
	}
	if cur.Values["oil_pressure"] < 25 {
		alerts = append(alerts, fmt.Sprintf("low oil pressure: %.1f psi", cur.Values["oil_pressure"]))
	}
	if cur.Values["battery_voltage"] < 12.0 {
		alerts = append(alerts, fmt.Sprintf("low battery voltage: %.2fV", cur.Values["battery_voltage"]))
	}
	for _, code := range cur.Codes {
		alerts = append(alerts, "active diagnostic code: "+code)
	}
	return alerts
}

func (vehicleVariant) predictions(cur model.Reading, health float64) map[string]any {
	odometer := cur.Values["odometer_km"]
	nextService := math.Ceil(odometer/serviceIntervalKm) * serviceIntervalKm
	return map[string]any{
		"next_service_km":    nextService,
		"km_until_service":   nextService - odometer,
		"failure_likelihood": failureLikelihood(health),
	}
}

func (vehicleVariant) recommendations(cur model.Reading, health float64) []string {
	var recs []string
	if cur.Values["engine_temp"] > 100 {
		recs = append(recs, "inspect cooling system")
	}
	if cur.Values["oil_pressure"] < 25 {
		recs = append(recs, "check oil level and pump")
	}
	if cur.Values["battery_voltage"] < 12.0 {
		recs = append(recs, "test battery and charging circuit")
	}
	if len(cur.Codes) > 0 {
		recs = append(recs, "run full OBD diagnostic scan")
	}
	if cur.Values["fuel_level"] < 15 {
		recs = append(recs, "refuel soon")
	}
	if len(recs) == 0 {
		recs = append(recs, "no action required")
	}
	return recs
}

// failureLikelihood maps a health score to a coarse likelihood band.
func failureLikelihood(health float64) string {
	switch {
	case health >= 80:
		return "low"
	case health >= 50:
		return "moderate"
	default:
		return "high"
	}
}
