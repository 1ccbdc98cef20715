// Package feedback implements the feedback stage: an operator submits
// post-service data for a completed booking, the model validates the
// original prediction against what technician and customer actually
// observed, and the stage scores the result for the manufacturing
// stage's downstream recurrence analysis (spec.md §4.10).
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

type modelInput struct {
	FeedbackID            string
	BookingID             string
	CaseID                string
	VehicleID             string
	TechnicianNotes       string
	CustomerRating        float64
	PostServiceTelemetry  []models.TelemetryEvent
	OriginalAnomalyType   string
}

type modelOutput struct {
	CEIScore           float64 `json:"cei_score"`
	ValidationLabel    string  `json:"validation_label"`
	RecommendedRetrain bool    `json:"recommended_retrain"`
}

func clampCEI(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

// normalizeValidationLabel maps anything that isn't one of the three
// exact labels onto "Recurring", the conservative default that still
// flags the prediction for retraining review.
func normalizeValidationLabel(s string) string {
	switch s {
	case "Correct", "Recurring", "Incorrect":
		return s
	default:
		return "Recurring"
	}
}

// recommendedRetrain is derived in Go, not trusted from the model's own
// boolean, mirroring the diagnosis stage's treatment of invariant-
// bearing fields: true iff the label means the prediction needs
// retraining attention.
func recommendedRetrain(label string) bool {
	return label == "Incorrect" || label == "Recurring"
}

const recentTelemetryLimit = 10

// Descriptor builds the feedback stage worker. It subscribes to
// feedback-trigger, the topic pkg/ingest publishes to on an operator's
// behalf, rather than to an orchestrator-routed *-complete topic —
// feedback starts a path, it does not continue one (spec.md §4.11).
func Descriptor(wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageFeedback,
		OutputTopic:        models.TopicFeedbackComplete,
		DuplicateTable:     store.TableFeedbackCases,
		DuplicateKeyColumn: "booking_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			bookingID := env.String("booking_id")
			if bookingID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return bookingID, nil
		},
		IsAdvanced: func(status string) bool { return status != "" },

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			bookingID := env.String("booking_id")
			vehicleID := env.String("vehicle_id")
			if bookingID == "" || vehicleID == "" {
				return modelInput{}, fmt.Errorf("%w: missing booking_id or vehicle_id", stageworker.ErrMalformedInput)
			}

			booking, err := st.GetBooking(ctx, bookingID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			if booking.Status == models.BookingStatusFeedbackComplete {
				return modelInput{}, stageworker.ErrSkipped
			}

			anomaly, err := st.GetAnomalyCase(ctx, booking.CaseID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			originalAnomalyType := ""
			if anomaly.AnomalyType != nil {
				originalAnomalyType = *anomaly.AnomalyType
			}

			telemetry := decodeTelemetry(env)
			if len(telemetry) == 0 {
				telemetry, err = st.RecentTelemetryEvents(ctx, vehicleID, recentTelemetryLimit)
				if err != nil {
					return modelInput{}, fmt.Errorf("recent telemetry events: %w", err)
				}
			}

			rating, _ := env.Float64("customer_rating")

			return modelInput{
				FeedbackID:           store.NewID("feedback"),
				BookingID:            bookingID,
				CaseID:               booking.CaseID,
				VehicleID:            vehicleID,
				TechnicianNotes:      env.String("technician_notes"),
				CustomerRating:       rating,
				PostServiceTelemetry: telemetry,
				OriginalAnomalyType:  originalAnomalyType,
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Validate a vehicle maintenance prediction against its actual service outcome.\n"+
					"Original anomaly type: %s\n"+
					"vehicle_id=%s booking_id=%s customer_rating=%.1f technician_notes=%q\n"+
					"post_service_telemetry_event_count=%d\n\n"+
					"Return JSON: {\"cei_score\": <1.0..5.0, Customer Effort Index, lower is better>, "+
					"\"validation_label\": \"Correct\"|\"Recurring\"|\"Incorrect\", "+
					"\"recommended_retrain\": true|false}",
				in.OriginalAnomalyType, in.VehicleID, in.BookingID, in.CustomerRating, in.TechnicianNotes,
				len(in.PostServiceTelemetry),
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			out.CEIScore = clampCEI(out.CEIScore)
			out.ValidationLabel = normalizeValidationLabel(out.ValidationLabel)
			out.RecommendedRetrain = recommendedRetrain(out.ValidationLabel)
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			c := models.FeedbackCase{
				FeedbackID:         in.FeedbackID,
				BookingID:          in.BookingID,
				CaseID:             in.CaseID,
				VehicleID:          in.VehicleID,
				CEIScore:           out.CEIScore,
				ValidationLabel:    out.ValidationLabel,
				RecommendedRetrain: out.RecommendedRetrain,
				TechnicianNotes:    in.TechnicianNotes,
				CustomerRating:     in.CustomerRating,
				Status:             models.FeedbackStatusComplete,
				CreatedAt:          time.Now(),
			}
			if err := st.InsertFeedbackCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert feedback case: %w", err)
			}
			if err := st.AdvanceBookingStatus(ctx, in.BookingID, models.BookingStatusFeedbackComplete); err != nil {
				return nil, false, fmt.Errorf("advance booking status: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableFeedbackCases, c)
			}

			return map[string]any{
				"feedback_id":         in.FeedbackID,
				"booking_id":          in.BookingID,
				"case_id":             in.CaseID,
				"vehicle_id":          in.VehicleID,
				"validation_label":    out.ValidationLabel,
				"recommended_retrain": out.RecommendedRetrain,
			}, true, nil
		},
	}
}

// decodeTelemetry pulls an operator-supplied post_service_telemetry
// array out of the envelope, if present. Absent or malformed input
// falls back to the store's recent-events lookup.
func decodeTelemetry(env bus.Envelope) []models.TelemetryEvent {
	raw, ok := env["post_service_telemetry"]
	if !ok {
		return nil
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var events []models.TelemetryEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil
	}
	return events
}
