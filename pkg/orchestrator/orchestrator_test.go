package orchestrator

import (
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/stretchr/testify/assert"
)

func TestInferAgentStageExplicitTag(t *testing.T) {
	env := bus.Envelope{"agent_stage": "rca", "case_id": "c1"}
	assert.Equal(t, "rca", inferAgentStage(env))
}

func TestInferAgentStageFromFields(t *testing.T) {
	cases := []struct {
		env  bus.Envelope
		want string
	}{
		{bus.Envelope{"case_id": "c1", "anomaly_type": "vibration"}, "data_analysis"},
		{bus.Envelope{"diagnosis_id": "d1"}, "diagnosis"},
		{bus.Envelope{"rca_id": "r1"}, "rca"},
		{bus.Envelope{"scheduling_id": "s1"}, "scheduling"},
		{bus.Envelope{"engagement_id": "e1"}, "engagement"},
		{bus.Envelope{"feedback_id": "f1"}, "feedback"},
		{bus.Envelope{"manufacturing_id": "m1"}, "manufacturing"},
		{bus.Envelope{"communication_id": "co1"}, "communication"},
		{bus.Envelope{"unrelated": "x"}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, inferAgentStage(c.env))
	}
}

func TestStrPtr(t *testing.T) {
	assert.Nil(t, strPtr(""))
	assert.Equal(t, "x", *strPtr("x"))
}
