package ingest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleTelemetryRejectsMissingVehicleID(t *testing.T) {
	h := &Handler{}
	r := gin.New()
	r.POST("/ingest_telemetry", h.handleTelemetry)

	body := strings.NewReader(`{"timestamp_utc": "2024-12-11T10:30:45Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest_telemetry", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFeedbackRejectsMissingBookingID(t *testing.T) {
	h := &Handler{}
	r := gin.New()
	r.POST("/feedback", h.handleFeedback)

	body := strings.NewReader(`{"vehicle_id": "MH-07-AB-1234"}`)
	req := httptest.NewRequest(http.MethodPost, "/feedback", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreflightSetsMaxAge(t *testing.T) {
	r := gin.New()
	r.OPTIONS("/ingest_telemetry", preflight)

	req := httptest.NewRequest(http.MethodOptions, "/ingest_telemetry", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}
