// Package rca implements the root-cause-analysis stage: given a
// diagnosis case and its telemetry context window, the model proposes a
// root cause, a confidence score, a recommended action, and a CAPA type
// (spec.md §4.6).
package rca

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
	RCAID              string
	DiagnosisID        string
	CaseID             string
	VehicleID          string
	Component          string
	FailureProbability float64
	EstimatedRULDays   int
	Severity           string
	ContextEventIDs    []string
}

type modelOutput struct {
	RootCause         string  `json:"root_cause"`
	Confidence        float64 `json:"confidence"`
	RecommendedAction string  `json:"recommended_action"`
	CAPAType          string  `json:"capa_type"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeCAPAType maps anything that isn't exactly "Preventive" onto
// "Corrective", the safer default recommended action class.
func normalizeCAPAType(s string) string {
	if s == "Preventive" {
		return "Preventive"
	}
	return "Corrective"
}

// Descriptor builds the RCA stage worker.
func Descriptor(wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageRCA,
		OutputTopic:        models.TopicRCAComplete,
		DuplicateTable:     store.TableRCACases,
		DuplicateKeyColumn: "diagnosis_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			diagnosisID := env.String("diagnosis_id")
			if diagnosisID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return diagnosisID, nil
		},
		IsAdvanced: store.RCAAdvancedBeyondScheduling,

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			diagnosisID := env.String("diagnosis_id")
			if diagnosisID == "" {
				return modelInput{}, fmt.Errorf("%w: missing diagnosis_id", stageworker.ErrMalformedInput)
			}

			diagnosis, err := st.GetDiagnosisCase(ctx, diagnosisID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			if store.DiagnosisAdvancedBeyondRCA(diagnosis.Status) {
				return modelInput{}, stageworker.ErrSkipped
			}

			return modelInput{
				RCAID:              store.NewID("rca"),
				DiagnosisID:        diagnosisID,
				CaseID:             diagnosis.CaseID,
				VehicleID:          diagnosis.VehicleID,
				Component:          diagnosis.Component,
				FailureProbability: diagnosis.FailureProbability,
				EstimatedRULDays:   diagnosis.EstimatedRULDays,
				Severity:           diagnosis.Severity,
				ContextEventIDs:    diagnosis.ContextEventIDs,
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Perform root cause analysis for vehicle %s.\n"+
					"component=%s failure_probability=%.2f estimated_rul_days=%d severity=%s context_event_ids=%v\n"+
					"Return JSON: {\"root_cause\": \"<specific technical cause>\", \"confidence\": <0..1>, "+
					"\"recommended_action\": \"<specific actionable recommendation>\", \"capa_type\": \"Corrective\"|\"Preventive\"}",
				in.VehicleID, in.Component, in.FailureProbability, in.EstimatedRULDays, in.Severity, in.ContextEventIDs,
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			out.Confidence = clamp01(out.Confidence)
			out.CAPAType = normalizeCAPAType(out.CAPAType)
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			c := models.RCACase{
				RCAID:             in.RCAID,
				DiagnosisID:       in.DiagnosisID,
				CaseID:            in.CaseID,
				VehicleID:         in.VehicleID,
				RootCause:         out.RootCause,
				Confidence:        out.Confidence,
				RecommendedAction: out.RecommendedAction,
				CAPAType:          out.CAPAType,
				Status:            models.RCAStatusPendingScheduling,
				CreatedAt:         time.Now(),
			}
			if err := st.InsertRCACase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert rca case: %w", err)
			}
			if err := st.AdvanceDiagnosisStatus(ctx, in.DiagnosisID, models.DiagnosisStatusRCAComplete); err != nil {
				return nil, false, fmt.Errorf("advance diagnosis status: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableRCACases, c)
			}

			return map[string]any{
				"rca_id":             in.RCAID,
				"diagnosis_id":       in.DiagnosisID,
				"case_id":            in.CaseID,
				"vehicle_id":         in.VehicleID,
				"root_cause":         out.RootCause,
				"confidence":         out.Confidence,
				"recommended_action": out.RecommendedAction,
				"capa_type":          out.CAPAType,
			}, true, nil
		},
	}
}
