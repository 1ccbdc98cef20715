package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveStageAndScrape(t *testing.T) {
	m := New()
	m.ObserveStage("diagnosis", "ok", 50*time.Millisecond)
	m.ObserveRouting("diagnosis", "routed")
	m.ObserveRouting("rca", "human_review")
	m.ObserveIngest("ingest_telemetry", "2xx")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pipeline_stage_invocations_total")
	assert.Contains(t, body, "pipeline_orchestrator_routing_decisions_total")
	assert.Contains(t, body, "pipeline_orchestrator_human_reviews_total")
	assert.Contains(t, body, "pipeline_ingest_requests_total")
}
