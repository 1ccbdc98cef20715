package anomaly

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

// windowSize is how many recent telemetry samples feed the detection rules
// (spec.md §4.4: "last 10 telemetry events").
const windowSize = 10

// modelInput is what the model is asked to narrate: the rule engine has
// already decided the anomaly_type and severity_score; the prompt asks
// the model only to confirm/describe it in the case record's free text.
type modelInput struct {
	VehicleID         string
	CaseID            string
	TelemetryEventIDs []string
	Finding           Finding
	Detected          bool
}

// modelOutput mirrors the JSON object the prompt asks the model to
// return — a short narrative the case stores alongside the rule-derived
// fields. The rule engine remains authoritative for anomaly_type and
// severity_score; the model never overrides them.
type modelOutput struct {
	Summary string `json:"summary"`
}

// SeverityLabel buckets a severity_score into the shared Low/Medium/High
// scale (spec.md §3's diagnosis invariant applied uniformly).
func SeverityLabel(score float64) string {
	switch {
	case score < 0.3:
		return "Low"
	case score < 0.7:
		return "Medium"
	default:
		return "High"
	}
}

// Descriptor builds the data-analysis stage worker.
func Descriptor(wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageDataAnalysis,
		OutputTopic:        models.TopicAnomalyDetected,
		DuplicateTable:     store.TableAnomalyCases,
		DuplicateKeyColumn: "vehicle_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			vehicleID := env.String("vehicle_id")
			if vehicleID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return vehicleID, nil
		},
		IsAdvanced: func(status string) bool { return false }, // pending_diagnosis itself suppresses via the age window only

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			vehicleID := env.String("vehicle_id")
			if vehicleID == "" {
				return modelInput{}, fmt.Errorf("%w: missing vehicle_id", stageworker.ErrMalformedInput)
			}

			samples, err := st.RecentTelemetryEvents(ctx, vehicleID, windowSize)
			if err != nil {
				return modelInput{}, fmt.Errorf("fetch telemetry window: %w", err)
			}
			if len(samples) == 0 {
				return modelInput{}, stageworker.ErrSkipped
			}

			eventIDs := make([]string, len(samples))
			for i, s := range samples {
				eventIDs[i] = s.EventID
			}

			// samples arrive oldest-first; Detect wants the most recent at index 0
			newestFirst := make([]models.TelemetryEvent, len(samples))
			for i, s := range samples {
				newestFirst[len(samples)-1-i] = s
			}
			finding, detected := Detect(newestFirst, DefaultThresholds)
			return modelInput{
				VehicleID:         vehicleID,
				CaseID:            store.NewID("case"),
				TelemetryEventIDs: eventIDs,
				Finding:           finding,
				Detected:          detected,
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			if !in.Detected {
				// No rule fired: skip the model call and the
				// anomaly-detected event entirely (spec.md §4.4).
				return "", stageworker.ErrSkipped
			}
			return fmt.Sprintf(
				"A vehicle telemetry anomaly was detected by rule-based classification.\n"+
					"vehicle_id=%s anomaly_type=%s severity_score=%.2f\n"+
					"Return JSON: {\"summary\": \"<one sentence describing the anomaly>\"}",
				in.VehicleID, in.Finding.AnomalyType, in.Finding.SeverityScore,
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			anomalyType := in.Finding.AnomalyType
			severityScore := in.Finding.SeverityScore

			c := models.AnomalyCase{
				CaseID:            in.CaseID,
				VehicleID:         in.VehicleID,
				AnomalyDetected:   in.Detected,
				TelemetryEventIDs: in.TelemetryEventIDs,
				Status:            models.AnomalyStatusPendingDiagnosis,
				CreatedAt:         time.Now(),
			}
			if in.Detected {
				c.AnomalyType = &anomalyType
				c.SeverityScore = &severityScore
				c.DTCCodes = in.Finding.DTCCodes
			}

			if err := st.InsertAnomalyCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert anomaly case: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableAnomalyCases, c)
			}

			if !in.Detected {
				return nil, false, nil
			}

			severity := SeverityLabel(severityScore)
			return map[string]any{
				"case_id":        in.CaseID,
				"vehicle_id":     in.VehicleID,
				"anomaly_type":   anomalyType,
				"severity_score": severityScore,
				"dtc_codes":      in.Finding.DTCCodes,
				"severity":       severity,
				"confidence":     1 - severityScore,
			}, true, nil
		},
	}
}
