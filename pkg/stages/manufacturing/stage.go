// Package manufacturing implements the terminal CAPA (Corrective and
// Preventive Action) stage: given a feedback validation and the fleet's
// recurrence counts for the same anomaly type and component, the model
// proposes a manufacturing-quality insight and a CAPA recommendation
// (spec.md §4.10).
package manufacturing

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
	ManufacturingID        string
	FeedbackID             string
	CaseID                 string
	VehicleID              string
	RootCause              string
	Component              string
	CEIScore               float64
	VehicleRecurrenceCount int
	AnomalyTypeFleetCount  int
	ComponentFleetCount    int
	BaselineClusterSize    int
}

type modelOutput struct {
	Issue                 string `json:"issue"`
	CAPARecommendation    string `json:"capa_recommendation"`
	Severity              string `json:"severity"`
	RecurrenceClusterSize int    `json:"recurrence_cluster_size"`
}

// severityBand computes the severity deterministically from the
// vehicle-level recurrence count and CEI score, per the original
// agent's classification table — the model is not trusted to apply it
// consistently, mirroring the rca stage's treatment of invariant-
// bearing fields.
func severityBand(recurrenceCount int, cei float64) string {
	switch {
	case recurrenceCount >= 3 || cei < 2.5:
		return "High"
	case recurrenceCount == 2 || (cei >= 2.5 && cei <= 3.5):
		return "Medium"
	default:
		return "Low"
	}
}

// clusterSize takes the larger of the deterministic fleet-wide baseline
// and the model's own estimate, never below 1 — spec.md §4.10: "max of
// the three counts unless the model returns a higher defensible value".
func clusterSize(baseline, modelEstimate int) int {
	size := baseline
	if modelEstimate > size {
		size = modelEstimate
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Descriptor builds the manufacturing stage worker.
func Descriptor(wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageManufacturing,
		OutputTopic:        models.TopicManufacturingComplete,
		DuplicateTable:     store.TableManufacturingCases,
		DuplicateKeyColumn: "case_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			caseID := env.String("case_id")
			if caseID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return caseID, nil
		},
		IsAdvanced: func(status string) bool { return status != "" },

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			feedbackID := env.String("feedback_id")
			caseID := env.String("case_id")
			vehicleID := env.String("vehicle_id")
			if feedbackID == "" || caseID == "" || vehicleID == "" {
				return modelInput{}, fmt.Errorf("%w: missing feedback_id, case_id, or vehicle_id", stageworker.ErrMalformedInput)
			}

			feedback, err := st.GetFeedbackCase(ctx, feedbackID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}

			anomaly, err := st.GetAnomalyCase(ctx, caseID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			anomalyType := ""
			if anomaly.AnomalyType != nil {
				anomalyType = *anomaly.AnomalyType
			}

			diagnosis, err := st.GetDiagnosisCaseByCaseID(ctx, caseID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}

			rca, err := st.GetRCACaseByCaseID(ctx, caseID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}

			vehicleCount, anomalyTypeCount, componentCount, err := st.RecurrenceCounts(ctx, vehicleID, anomalyType, diagnosis.Component)
			if err != nil {
				return modelInput{}, fmt.Errorf("recurrence counts: %w", err)
			}
			baseline := vehicleCount
			if anomalyTypeCount > baseline {
				baseline = anomalyTypeCount
			}
			if componentCount > baseline {
				baseline = componentCount
			}

			return modelInput{
				ManufacturingID:        store.NewID("manufacturing"),
				FeedbackID:             feedbackID,
				CaseID:                 caseID,
				VehicleID:              vehicleID,
				RootCause:              rca.RootCause,
				Component:              diagnosis.Component,
				CEIScore:               feedback.CEIScore,
				VehicleRecurrenceCount: vehicleCount,
				AnomalyTypeFleetCount:  anomalyTypeCount,
				ComponentFleetCount:    componentCount,
				BaselineClusterSize:    baseline,
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Generate a manufacturing CAPA insight for vehicle %s.\n"+
					"root_cause=%q component=%s cei_score=%.1f\n"+
					"vehicle_recurrence_count=%d fleet_anomaly_type_count=%d fleet_component_count=%d\n\n"+
					"Return JSON: {\"issue\": \"<component/system>: <brief description>\", "+
					"\"capa_recommendation\": \"<specific actionable change>\", "+
					"\"severity\": \"Low\"|\"Medium\"|\"High\", \"recurrence_cluster_size\": <int, minimum 1>}",
				in.VehicleID, in.RootCause, in.Component, in.CEIScore,
				in.VehicleRecurrenceCount, in.AnomalyTypeFleetCount, in.ComponentFleetCount,
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			out.Severity = severityBand(in.VehicleRecurrenceCount, in.CEIScore)
			out.RecurrenceClusterSize = clusterSize(in.BaselineClusterSize, out.RecurrenceClusterSize)
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			c := models.ManufacturingCase{
				ManufacturingID:        in.ManufacturingID,
				FeedbackID:             in.FeedbackID,
				CaseID:                 in.CaseID,
				VehicleID:              in.VehicleID,
				Issue:                  out.Issue,
				CAPARecommendation:     out.CAPARecommendation,
				Severity:               out.Severity,
				RecurrenceClusterSize:  out.RecurrenceClusterSize,
				VehicleRecurrenceCount: in.VehicleRecurrenceCount,
				AnomalyTypeFleetCount:  in.AnomalyTypeFleetCount,
				ComponentFleetCount:    in.ComponentFleetCount,
				Status:                 models.ManufacturingStatusComplete,
				CreatedAt:              time.Now(),
			}
			if err := st.InsertManufacturingCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert manufacturing case: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableManufacturingCases, c)
			}

			return map[string]any{
				"manufacturing_id": in.ManufacturingID,
				"feedback_id":      in.FeedbackID,
				"case_id":          in.CaseID,
				"vehicle_id":       in.VehicleID,
				"severity":         out.Severity,
			}, true, nil
		},
	}
}
