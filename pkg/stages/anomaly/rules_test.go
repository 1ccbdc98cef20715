package anomaly

import (
	"testing"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t time.Time, mods func(*models.TelemetryEvent)) models.TelemetryEvent {
	ev := models.TelemetryEvent{
		EventID:    "ev_" + t.Format(time.RFC3339Nano),
		VehicleID:  "veh_1",
		Timestamp:  t,
		Latitude:   37.77,
		Longitude:  -122.41,
		Speed:      60,
		EngineRPM:  2500,
		CoolantTempC: 90,
		OilTempC:   95,
		BatterySoC: 80,
		BatterySoH: 95,
	}
	if mods != nil {
		mods(&ev)
	}
	return ev
}

func TestDetectThermalOverheat(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, func(e *models.TelemetryEvent) { e.CoolantTempC = 115 }),
		sample(now.Add(-time.Minute), nil),
	}
	f, ok := Detect(window, DefaultThresholds)
	require.True(t, ok)
	assert.Equal(t, "thermal_overheat", f.AnomalyType)
	assert.Greater(t, f.SeverityScore, 0.0)
}

func TestDetectNoAnomalyWhenNominal(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, nil),
		sample(now.Add(-time.Minute), nil),
	}
	_, ok := Detect(window, DefaultThresholds)
	assert.False(t, ok)
}

func TestDetectRPMStall(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, func(e *models.TelemetryEvent) { e.EngineRPM = 100; e.Speed = 40 }),
		sample(now.Add(-time.Minute), nil),
	}
	f, ok := Detect(window, DefaultThresholds)
	require.True(t, ok)
	assert.Equal(t, "rpm_stall", f.AnomalyType)
}

func TestDetectSpeedAnomaly(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, func(e *models.TelemetryEvent) { e.Speed = 0 }),
		sample(now.Add(-time.Minute), func(e *models.TelemetryEvent) { e.Speed = 80 }),
	}
	f, ok := Detect(window, DefaultThresholds)
	require.True(t, ok)
	assert.Equal(t, "speed_anomaly", f.AnomalyType)
}

func TestDetectDTCFault(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, func(e *models.TelemetryEvent) { e.DTCCodes = []string{"P0301"} }),
		sample(now.Add(-time.Minute), nil),
	}
	f, ok := Detect(window, DefaultThresholds)
	require.True(t, ok)
	assert.Equal(t, "dtc_fault", f.AnomalyType)
	assert.Equal(t, []string{"P0301"}, f.DTCCodes)
}

func TestDetectHighestSeverityWins(t *testing.T) {
	now := time.Now()
	window := []models.TelemetryEvent{
		sample(now, func(e *models.TelemetryEvent) {
			e.CoolantTempC = 111 // barely above threshold, low severity
			e.EngineRPM = 9000   // way above threshold, high severity
		}),
		sample(now.Add(-time.Minute), nil),
	}
	f, ok := Detect(window, DefaultThresholds)
	require.True(t, ok)
	assert.Equal(t, "rpm_spike", f.AnomalyType)
}

func TestSeverityLabelBands(t *testing.T) {
	assert.Equal(t, "Low", SeverityLabel(0.1))
	assert.Equal(t, "Medium", SeverityLabel(0.5))
	assert.Equal(t, "High", SeverityLabel(0.9))
}
