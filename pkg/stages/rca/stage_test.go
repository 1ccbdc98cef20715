package rca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCAPAType(t *testing.T) {
	assert.Equal(t, "Preventive", normalizeCAPAType("Preventive"))
	assert.Equal(t, "Corrective", normalizeCAPAType("Corrective"))
	assert.Equal(t, "Corrective", normalizeCAPAType("preventive"))
	assert.Equal(t, "Corrective", normalizeCAPAType(""))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}
