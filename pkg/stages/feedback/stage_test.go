package feedback

import (
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/stretchr/testify/assert"
)

func TestClampCEI(t *testing.T) {
	assert.Equal(t, 1.0, clampCEI(0))
	assert.Equal(t, 5.0, clampCEI(6))
	assert.Equal(t, 3.2, clampCEI(3.2))
}

func TestNormalizeValidationLabel(t *testing.T) {
	assert.Equal(t, "Correct", normalizeValidationLabel("Correct"))
	assert.Equal(t, "Recurring", normalizeValidationLabel("Recurring"))
	assert.Equal(t, "Incorrect", normalizeValidationLabel("Incorrect"))
	assert.Equal(t, "Recurring", normalizeValidationLabel("correct"))
	assert.Equal(t, "Recurring", normalizeValidationLabel(""))
}

func TestRecommendedRetrain(t *testing.T) {
	assert.True(t, recommendedRetrain("Incorrect"))
	assert.True(t, recommendedRetrain("Recurring"))
	assert.False(t, recommendedRetrain("Correct"))
}

func TestDecodeTelemetryAbsent(t *testing.T) {
	env := bus.Envelope{"booking_id": "b1"}
	assert.Nil(t, decodeTelemetry(env))
}

func TestDecodeTelemetryPresent(t *testing.T) {
	env := bus.Envelope{
		"post_service_telemetry": []any{
			map[string]any{"event_id": "evt1", "vehicle_id": "v1"},
		},
	}
	events := decodeTelemetry(env)
	if assert.Len(t, events, 1) {
		assert.Equal(t, "evt1", events[0].EventID)
	}
}
