// Package anomaly implements the data-analysis stage: rule-based
// anomaly detection over a vehicle's recent telemetry window, wrapped
// in the shared stageworker skeleton so the model still narrates a
// classification even though the trigger itself is deterministic.
package anomaly

import (
	"math"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// Thresholds mirrors original_source/backend/functions/thresholds.py's
// DEFAULT_THRESHOLDS exactly.
type Thresholds struct {
	EngineCoolantTempC float64
	EngineOilTempC     float64
	BatterySoCPct      float64
	BatterySoHPct      float64
	EngineRPM          float64
}

// DefaultThresholds are the production detection thresholds.
var DefaultThresholds = Thresholds{
	EngineCoolantTempC: 110,
	EngineOilTempC:     130,
	BatterySoCPct:      10,
	BatterySoHPct:      70,
	EngineRPM:          6500,
}

// stallSpeedFloor is the minimum speed (km/h) above which a near-zero
// RPM reading counts as a stall rather than the vehicle being parked.
const stallSpeedFloor = 5.0
const stallRPMCeiling = 500.0

// speedDropFrom defines the speed-anomaly rule: a transition from above
// speedDropFrom in the previous sample to below 1 km/h in the latest
// counts as an anomalous stop.
const speedDropFrom = 10.0

// gpsJumpKM is the maximum plausible distance between two consecutive
// samples; anything larger signals a bad GPS fix or a jump.
const gpsJumpKM = 1.0

// Finding is one candidate anomaly detected in a telemetry window, with
// a severity score in [0,1] proportional to how far the triggering
// reading deviates from its threshold.
type Finding struct {
	AnomalyType   string
	SeverityScore float64
	DTCCodes      []string
}

// Detect evaluates every rule against the latest sample in window
// (window[0] is the most recent sample, window[1] the one before it) and
// returns the highest-severity finding, or false if nothing fired.
func Detect(window []models.TelemetryEvent, th Thresholds) (Finding, bool) {
	if len(window) == 0 {
		return Finding{}, false
	}
	latest := window[0]

	var findings []Finding

	if latest.CoolantTempC > th.EngineCoolantTempC {
		findings = append(findings, Finding{
			AnomalyType:   "thermal_overheat",
			SeverityScore: severityAbove(latest.CoolantTempC, th.EngineCoolantTempC, 40),
		})
	}
	if latest.OilTempC > th.EngineOilTempC {
		findings = append(findings, Finding{
			AnomalyType:   "oil_overheat",
			SeverityScore: severityAbove(latest.OilTempC, th.EngineOilTempC, 40),
		})
	}
	if latest.BatterySoH < th.BatterySoHPct {
		findings = append(findings, Finding{
			AnomalyType:   "battery_degradation",
			SeverityScore: severityBelow(latest.BatterySoH, th.BatterySoHPct, 70),
		})
	}
	if latest.BatterySoC < th.BatterySoCPct {
		findings = append(findings, Finding{
			AnomalyType:   "low_charge",
			SeverityScore: severityBelow(latest.BatterySoC, th.BatterySoCPct, 10),
		})
	}
	if latest.EngineRPM > th.EngineRPM {
		findings = append(findings, Finding{
			AnomalyType:   "rpm_spike",
			SeverityScore: severityAbove(latest.EngineRPM, th.EngineRPM, 2000),
		})
	}
	if latest.EngineRPM < stallRPMCeiling && latest.Speed > stallSpeedFloor {
		findings = append(findings, Finding{
			AnomalyType:   "rpm_stall",
			SeverityScore: severityBelow(latest.EngineRPM, stallRPMCeiling, stallRPMCeiling),
		})
	}
	if len(latest.DTCCodes) > 0 {
		findings = append(findings, Finding{
			AnomalyType:   "dtc_fault",
			SeverityScore: math.Min(1, 0.5+0.1*float64(len(latest.DTCCodes))),
			DTCCodes:      latest.DTCCodes,
		})
	}
	if prev, ok := previousSample(window); ok {
		if prev.Speed > speedDropFrom && latest.Speed < 1 {
			findings = append(findings, Finding{
				AnomalyType:   "speed_anomaly",
				SeverityScore: severityAbove(prev.Speed, speedDropFrom, 100),
			})
		}
		if dist := haversineKM(prev.Latitude, prev.Longitude, latest.Latitude, latest.Longitude); dist > gpsJumpKM {
			findings = append(findings, Finding{
				AnomalyType:   "gps_anomaly",
				SeverityScore: severityAbove(dist, gpsJumpKM, 20),
			})
		}
		if !inPlausibleRange(latest.Latitude, latest.Longitude) {
			findings = append(findings, Finding{AnomalyType: "gps_anomaly", SeverityScore: 0.8})
		}
	}

	if len(findings) == 0 {
		return Finding{}, false
	}

	best := findings[0]
	for _, f := range findings[1:] {
		if f.SeverityScore > best.SeverityScore {
			best = f
		}
	}
	return best, true
}

// previousSample returns the sample immediately preceding the most
// recent one in a DESC-ordered window.
func previousSample(window []models.TelemetryEvent) (models.TelemetryEvent, bool) {
	if len(window) < 2 {
		return models.TelemetryEvent{}, false
	}
	return window[1], true
}

// severityAbove scales how far value exceeds threshold into [0,1],
// saturating once the deviation reaches span.
func severityAbove(value, threshold, span float64) float64 {
	if span <= 0 {
		return 1
	}
	return clamp01((value - threshold) / span)
}

// severityBelow is severityAbove's mirror for below-threshold rules.
func severityBelow(value, threshold, span float64) float64 {
	if span <= 0 {
		return 1
	}
	return clamp01((threshold - value) / span)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// inPlausibleRange rejects GPS fixes outside valid lat/lon bounds or
// parked at exactly (0,0), the classic "no fix" sentinel.
func inPlausibleRange(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// haversineKM returns the great-circle distance between two points in
// kilometers.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
