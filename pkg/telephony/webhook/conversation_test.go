package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTurnFallsBackToCompletedOnBadStage(t *testing.T) {
	tn, err := parseTurn(`{"message": "ok", "next_stage": "bogus"}`)
	assert.NoError(t, err)
	assert.Equal(t, StageCompleted, tn.NextStage)
	assert.Equal(t, "ok", tn.Message)
}

func TestParseTurnDefaultsMessage(t *testing.T) {
	tn, err := parseTurn(`{"next_stage": "explanation"}`)
	assert.NoError(t, err)
	assert.NotEmpty(t, tn.Message)
}

func TestDeriveOutcome(t *testing.T) {
	assert.Equal(t, "confirmed", deriveOutcome(StageScheduling, "Yes please"))
	assert.Equal(t, "declined", deriveOutcome(StageCompleted, "No thanks"))
	assert.Equal(t, "", deriveOutcome(StageQuestions, "What time works"))
}
