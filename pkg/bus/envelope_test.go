package bus

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawObject(t *testing.T) {
	raw := []byte(`{"case_id":"case_abc","agent_stage":"data_analysis"}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "case_abc", env.CaseID())
	assert.Equal(t, "data_analysis", env.AgentStage())
}

func TestDecodeJSONEncodedString(t *testing.T) {
	inner := `{"case_id":"case_xyz"}`
	wrapped, err := json.Marshal(inner)
	require.NoError(t, err)

	env, err := Decode(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "case_xyz", env.CaseID())
}

func TestDecodeLegacyBase64Wrapper(t *testing.T) {
	inner := []byte(`{"case_id":"case_legacy"}`)
	encoded := base64.StdEncoding.EncodeToString(inner)
	wrapper := map[string]any{
		"message": map[string]any{"data": encoded},
	}
	raw, err := json.Marshal(wrapper)
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "case_legacy", env.CaseID())
}

func TestDecodeEmptyObjectIsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecodeGarbageIsMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestEnvelopeFloat64(t *testing.T) {
	env := Envelope{"confidence": 0.91}
	v, ok := env.Float64("confidence")
	require.True(t, ok)
	assert.InDelta(t, 0.91, v, 0.0001)

	_, ok = env.Float64("missing")
	assert.False(t, ok)
}
