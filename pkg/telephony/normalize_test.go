package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+919876543210", NormalizePhone("09876543210"))
	assert.Equal(t, "+919876543210", NormalizePhone("9876543210"))
	assert.Equal(t, "+15551234567", NormalizePhone("+15551234567"))
	assert.Equal(t, "+15551234567", NormalizePhone("15551234567"))
	assert.Equal(t, "", NormalizePhone("  "))
}
