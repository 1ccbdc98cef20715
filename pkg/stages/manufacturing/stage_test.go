package manufacturing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBand(t *testing.T) {
	assert.Equal(t, "High", severityBand(3, 4.0))
	assert.Equal(t, "High", severityBand(1, 2.0))
	assert.Equal(t, "Medium", severityBand(2, 4.0))
	assert.Equal(t, "Medium", severityBand(1, 3.0))
	assert.Equal(t, "Low", severityBand(1, 4.0))
}

func TestClusterSize(t *testing.T) {
	assert.Equal(t, 5, clusterSize(5, 2))
	assert.Equal(t, 8, clusterSize(5, 8))
	assert.Equal(t, 1, clusterSize(0, 0))
}
