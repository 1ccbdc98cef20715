package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentMapping(t *testing.T) {
	assert.Equal(t, "engine_coolant_system", Component("thermal_overheat", nil))
	assert.Equal(t, "engine_oil_system", Component("oil_overheat", nil))
	assert.Equal(t, "battery", Component("battery_degradation", nil))
	assert.Equal(t, "battery", Component("low_charge", nil))
	assert.Equal(t, "engine", Component("rpm_spike", nil))
	assert.Equal(t, "engine", Component("rpm_stall", nil))
	assert.Equal(t, "gps_system", Component("gps_anomaly", nil))
}

func TestComponentFromDTCPrefix(t *testing.T) {
	assert.Equal(t, "engine", Component("dtc_fault", []string{"P0301"}))
	assert.Equal(t, "transmission", Component("dtc_fault", []string{"P1730"}))
}

func TestFailureProbabilityBands(t *testing.T) {
	assert.Equal(t, 0.0, FailureProbability(0))
	assert.InDelta(t, 0.8, FailureProbability(0.75), 0.15)
	assert.InDelta(t, 0.95, FailureProbability(0.95), 0.1)
}

func TestEstimatedRULDaysFloorsAtOne(t *testing.T) {
	assert.GreaterOrEqual(t, EstimatedRULDays(1.0), 1)
	assert.LessOrEqual(t, EstimatedRULDays(1.0), 7)
}

func TestSeverityBands(t *testing.T) {
	assert.Equal(t, "Low", Severity(0.1))
	assert.Equal(t, "Medium", Severity(0.5))
	assert.Equal(t, "High", Severity(0.9))
}

func TestNoAnomalySpecialCase(t *testing.T) {
	// spec.md §4.5: anomaly_detected=false => failure_probability=0,
	// estimated_rul_days=180, severity=Low — exercised at the Commit
	// layer, not pure functions, but the bands must independently agree.
	assert.Equal(t, "Low", Severity(0.0))
}
