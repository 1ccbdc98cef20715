package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDecisionFallsBackToNoResponse(t *testing.T) {
	assert.Equal(t, "confirmed", normalizeDecision("confirmed"))
	assert.Equal(t, "declined", normalizeDecision("declined"))
	assert.Equal(t, "no_response", normalizeDecision("maybe"))
	assert.Equal(t, "no_response", normalizeDecision(""))
}
