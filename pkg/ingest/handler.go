// Package ingest hosts the HTTP front door to the pipeline: telemetry
// ingestion from vehicles and operator-submitted post-service feedback.
// The telemetry handler writes its event, then enqueues onto the bus in
// the same request; the feedback handler only enqueues. There is no
// separate outbox step (spec.md §4.1, §4.10).
package ingest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/metrics"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/store"
)

// Handler serves the ingest endpoints.
type Handler struct {
	store   *store.Store
	pub     *bus.Publisher
	metrics *metrics.Registry
	log     *slog.Logger
}

// NewHandler builds a Handler. m may be nil to disable metrics.
func NewHandler(st *store.Store, pub *bus.Publisher, m *metrics.Registry) *Handler {
	return &Handler{store: st, pub: pub, metrics: m, log: slog.Default().With("component", "ingest")}
}

// observe records one request's outcome if metrics are enabled.
func (h *Handler) observe(endpoint, statusClass string) {
	if h.metrics != nil {
		h.metrics.ObserveIngest(endpoint, statusClass)
	}
}

// Register mounts the ingest routes on r (or a sub-group).
func (h *Handler) Register(r gin.IRouter) {
	r.Use(cors)
	r.OPTIONS("/ingest_telemetry", preflight)
	r.POST("/ingest_telemetry", h.handleTelemetry)
	r.OPTIONS("/feedback", preflight)
	r.POST("/feedback", h.handleFeedback)
}

// cors mirrors ingest_telemetry/main.py's manually-set Access-Control-*
// headers — no CORS middleware in the example pack covers a gin router,
// and the original's own handling is this simple.
func cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Next()
}

func preflight(c *gin.Context) {
	c.Header("Access-Control-Max-Age", "3600")
	c.Status(http.StatusNoContent)
}

// telemetryRequest mirrors functions/ingest_telemetry/schemas.py's
// TelematicsEvent, field for field.
type telemetryRequest struct {
	EventID            string    `json:"event_id"`
	VehicleID          string    `json:"vehicle_id" binding:"required"`
	TimestampUTC       time.Time `json:"timestamp_utc" binding:"required"`
	GPSLat             float64   `json:"gps_lat"`
	GPSLon             float64   `json:"gps_lon"`
	SpeedKMPH          float64   `json:"speed_kmph"`
	OdometerKM         float64   `json:"odometer_km"`
	EngineRPM          float64   `json:"engine_rpm"`
	EngineCoolantTempC float64   `json:"engine_coolant_temp_c"`
	EngineOilTempC     float64   `json:"engine_oil_temp_c"`
	FuelLevelPct       float64   `json:"fuel_level_pct"`
	BatterySoCPct      float64   `json:"battery_soc_pct"`
	BatterySoHPct      float64   `json:"battery_soh_pct"`
	DTCCodes           []string  `json:"dtc_codes"`
}

// handleTelemetry validates, persists, and publishes one telemetry
// sample, auto-generating event_id when the caller omits it (spec.md
// §4.1).
func (h *Handler) handleTelemetry(c *gin.Context) {
	var req telemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe("ingest_telemetry", "4xx")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	if req.EventID == "" {
		req.EventID = store.NewID("evt")
	}

	ev := models.TelemetryEvent{
		EventID:      req.EventID,
		VehicleID:    req.VehicleID,
		Timestamp:    req.TimestampUTC,
		Latitude:     req.GPSLat,
		Longitude:    req.GPSLon,
		Speed:        req.SpeedKMPH,
		Odometer:     req.OdometerKM,
		EngineRPM:    req.EngineRPM,
		CoolantTempC: req.EngineCoolantTempC,
		OilTempC:     req.EngineOilTempC,
		FuelPercent:  req.FuelLevelPct,
		BatterySoC:   req.BatterySoCPct,
		BatterySoH:   req.BatterySoHPct,
		DTCCodes:     req.DTCCodes,
		CreatedAt:    time.Now(),
	}

	ctx := c.Request.Context()
	if err := h.store.InsertTelemetryEvent(ctx, ev); err != nil {
		h.log.Error("insert telemetry event failed", "event_id", ev.EventID, "error", err)
		h.observe("ingest_telemetry", "5xx")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	payload := models.TelemetryIngestedPayload{
		EventID:   ev.EventID,
		VehicleID: ev.VehicleID,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
	}
	if err := h.pub.Publish(ctx, models.TopicTelemetryIngested, payload); err != nil {
		h.log.Error("publish telemetry-ingested failed", "event_id", ev.EventID, "error", err)
		h.observe("ingest_telemetry", "5xx")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	h.observe("ingest_telemetry", "2xx")
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"event_id": ev.EventID,
		"message":  "Telemetry data stored successfully",
	})
}

// feedbackRequest is an operator's post-service submission (spec.md
// §4.10). PostServiceTelemetry is optional — the feedback stage
// auto-fetches recent telemetry when it's omitted.
type feedbackRequest struct {
	BookingID            string                   `json:"booking_id" binding:"required"`
	VehicleID            string                   `json:"vehicle_id" binding:"required"`
	TechnicianNotes      string                   `json:"technician_notes"`
	CustomerRating       float64                  `json:"customer_rating"`
	PostServiceTelemetry []models.TelemetryEvent  `json:"post_service_telemetry,omitempty"`
}

// handleFeedback validates and publishes an operator's feedback
// submission onto feedback-trigger, the topic pkg/stages/feedback
// subscribes to.
func (h *Handler) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe("feedback", "4xx")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	payload := models.FeedbackTriggerPayload{
		BookingID:            req.BookingID,
		VehicleID:            req.VehicleID,
		TechnicianNotes:      req.TechnicianNotes,
		CustomerRating:       req.CustomerRating,
		PostServiceTelemetry: req.PostServiceTelemetry,
	}

	if err := h.pub.Publish(c.Request.Context(), models.TopicFeedbackTrigger, payload); err != nil {
		h.log.Error("publish feedback-trigger failed", "booking_id", req.BookingID, "error", err)
		h.observe("feedback", "5xx")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	h.observe("feedback", "2xx")
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"booking_id": req.BookingID,
		"message":    "Feedback accepted",
	})
}
