// Package scheduling implements the scheduling stage: classifies
// urgency from estimated_rul_days, selects a best slot plus fallback
// slots from the service-center registry, and asks the model to narrate
// the choice (spec.md §4.7).
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/servicecenter"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

type modelInput struct {
	SchedulingID string
	RCAID        string
	DiagnosisID  string
	CaseID       string
	VehicleID    string
	Severity     string
	Selection    servicecenter.Selection
}

type modelOutput struct {
	Narrative string `json:"narrative"`
}

// Descriptor builds the scheduling stage worker.
func Descriptor(registry *servicecenter.Registry, wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageScheduling,
		OutputTopic:        models.TopicSchedulingComplete,
		DuplicateTable:     store.TableSchedulingCases,
		DuplicateKeyColumn: "rca_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			rcaID := env.String("rca_id")
			if rcaID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return rcaID, nil
		},
		IsAdvanced: store.SchedulingAdvancedBeyondEngagement,

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			rcaID := env.String("rca_id")
			if rcaID == "" {
				return modelInput{}, fmt.Errorf("%w: missing rca_id", stageworker.ErrMalformedInput)
			}

			rcaCase, err := st.GetRCACase(ctx, rcaID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			if store.RCAAdvancedBeyondScheduling(rcaCase.Status) {
				return modelInput{}, stageworker.ErrSkipped
			}

			diagnosis, err := st.GetDiagnosisCase(ctx, rcaCase.DiagnosisID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}

			slotType := servicecenter.SlotTypeFor(diagnosis.EstimatedRULDays)
			sel, ok, err := registry.Select(ctx, slotType, time.Now(), st.OccupiedSlots)
			if err != nil {
				return modelInput{}, fmt.Errorf("select slot: %w", err)
			}
			if !ok {
				return modelInput{}, fmt.Errorf("%w: no service center has capacity", stageworker.ErrMalformedInput)
			}

			return modelInput{
				SchedulingID: store.NewID("scheduling"),
				RCAID:        rcaID,
				DiagnosisID:  rcaCase.DiagnosisID,
				CaseID:       rcaCase.CaseID,
				VehicleID:    rcaCase.VehicleID,
				Severity:     diagnosis.Severity,
				Selection:    sel,
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Summarize the service appointment chosen for vehicle %s.\n"+
					"slot_type=%s service_center=%s best_slot=%s severity=%s\n"+
					"Return JSON: {\"narrative\": \"<one sentence summary of the scheduling decision>\"}",
				in.VehicleID, in.Selection.SlotType, in.Selection.ServiceCenter,
				in.Selection.BestSlot.Format(time.RFC3339), in.Severity,
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
			c := models.SchedulingCase{
				SchedulingID:  in.SchedulingID,
				RCAID:         in.RCAID,
				DiagnosisID:   in.DiagnosisID,
				CaseID:        in.CaseID,
				VehicleID:     in.VehicleID,
				BestSlot:      in.Selection.BestSlot,
				ServiceCenter: in.Selection.ServiceCenter,
				SlotType:      in.Selection.SlotType,
				FallbackSlots: in.Selection.FallbackSlots,
				Status:        models.SchedulingStatusPendingEngagement,
				CreatedAt:     time.Now(),
			}
			if err := st.InsertSchedulingCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert scheduling case: %w", err)
			}
			if err := st.AdvanceRCAStatus(ctx, in.RCAID, models.RCAStatusScheduled); err != nil {
				return nil, false, fmt.Errorf("advance rca status: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableSchedulingCases, c)
			}

			fallbackStrs := make([]string, len(in.Selection.FallbackSlots))
			for i, s := range in.Selection.FallbackSlots {
				fallbackStrs[i] = s.Format(time.RFC3339)
			}

			return map[string]any{
				"scheduling_id":  in.SchedulingID,
				"rca_id":         in.RCAID,
				"diagnosis_id":   in.DiagnosisID,
				"case_id":        in.CaseID,
				"vehicle_id":     in.VehicleID,
				"best_slot":      in.Selection.BestSlot.Format(time.RFC3339),
				"service_center": in.Selection.ServiceCenter,
				"slot_type":      in.Selection.SlotType,
				"fallback_slots": fallbackStrs,
			}, true, nil
		},
	}
}
