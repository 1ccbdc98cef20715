package warehouse

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/masking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorWritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	sink := New(&buf)

	sink.Mirror("feedback_cases", map[string]any{"feedback_id": "feedback_abc"})

	var line struct {
		Table  string         `json:"table"`
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "feedback_cases", line.Table)
	assert.Equal(t, "feedback_abc", line.Record["feedback_id"])
}

func TestMirrorMasksPIIWhenAttached(t *testing.T) {
	var buf bytes.Buffer
	sink := New(&buf).WithMasking(masking.NewService())

	sink.Mirror("human_reviews", map[string]any{"customer_phone": "415-555-0134"})

	assert.NotContains(t, buf.String(), "415-555-0134")
	assert.Contains(t, buf.String(), "***-***-****")
}
