package communication

import (
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/config"
	"github.com/navigo-fleet/pipeline/pkg/telephony"
	"github.com/stretchr/testify/assert"
)

func TestDisabledServiceIsNotEnabled(t *testing.T) {
	svc := telephony.NewService(config.Twilio{})
	assert.False(t, svc.Enabled())
}
