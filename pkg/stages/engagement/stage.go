// Package engagement implements the engagement stage: generates a
// simulated customer dialogue and decision, mints a booking on
// confirmation, and fans out a communication-trigger when a phone
// number is on file (spec.md §4.8).
package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/vehicle"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

// engagementConfidence is the fixed confidence engagement reports to
// the orchestrator, mirroring original_source's hard-coded 0.90 — this
// stage isn't one of the three critical, confidence-gated stages.
const engagementConfidence = 0.90

type modelInput struct {
	EngagementID      string
	SchedulingID      string
	RCAID             string
	CaseID            string
	VehicleID         string
	RootCause         string
	RecommendedAction string
	BestSlot          time.Time
	ServiceCenter     string
	Contact           vehicle.Contact
}

type modelOutput struct {
	CustomerDecision string `json:"customer_decision"`
	BookingID        *string `json:"booking_id"`
	Transcript       string `json:"transcript"`
}

var validDecisions = map[string]bool{"confirmed": true, "declined": true, "no_response": true}

func normalizeDecision(d string) string {
	if validDecisions[d] {
		return d
	}
	return "no_response"
}

// Descriptor builds the engagement stage worker.
func Descriptor(dir *vehicle.Directory, wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageEngagement,
		OutputTopic:        models.TopicEngagementComplete,
		DuplicateTable:     store.TableEngagementCases,
		DuplicateKeyColumn: "scheduling_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			schedulingID := env.String("scheduling_id")
			if schedulingID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return schedulingID, nil
		},
		IsAdvanced: func(status string) bool { return status == "completed" },

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			schedulingID := env.String("scheduling_id")
			if schedulingID == "" {
				return modelInput{}, fmt.Errorf("%w: missing scheduling_id", stageworker.ErrMalformedInput)
			}

			sched, err := st.GetSchedulingCase(ctx, schedulingID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			if store.SchedulingAdvancedBeyondEngagement(sched.Status) {
				return modelInput{}, stageworker.ErrSkipped
			}

			rcaCase, err := st.GetRCACase(ctx, sched.RCAID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}

			return modelInput{
				EngagementID:      store.NewID("engagement"),
				SchedulingID:      schedulingID,
				RCAID:             sched.RCAID,
				CaseID:            sched.CaseID,
				VehicleID:         sched.VehicleID,
				RootCause:         rcaCase.RootCause,
				RecommendedAction: rcaCase.RecommendedAction,
				BestSlot:          sched.BestSlot,
				ServiceCenter:     sched.ServiceCenter,
				Contact:           dir.Lookup(sched.VehicleID),
			}, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Simulate a persuasive but realistic customer engagement call for vehicle %s.\n"+
					"root_cause=%q recommended_action=%q best_slot=%s service_center=%s customer_name=%q\n"+
					"Return JSON: {\"customer_decision\": \"confirmed\"|\"declined\"|\"no_response\", "+
					"\"booking_id\": \"booking_<8 alphanumeric>\"|null, \"transcript\": \"AI: ...\\nCustomer: ...\"}",
				in.VehicleID, in.RootCause, in.RecommendedAction,
				in.BestSlot.Format(time.RFC3339), in.ServiceCenter, in.Contact.Name,
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			out.CustomerDecision = normalizeDecision(out.CustomerDecision)
			if out.CustomerDecision != "confirmed" {
				out.BookingID = nil
			} else if out.BookingID == nil || *out.BookingID == "" {
				id := store.NewID("booking")
				out.BookingID = &id
			}
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			c := models.EngagementCase{
				EngagementID:     in.EngagementID,
				SchedulingID:     in.SchedulingID,
				RCAID:            in.RCAID,
				CaseID:           in.CaseID,
				VehicleID:        in.VehicleID,
				CustomerPhone:    in.Contact.Phone,
				CustomerName:     in.Contact.Name,
				CustomerDecision: out.CustomerDecision,
				BookingID:        out.BookingID,
				Transcript:       []models.TranscriptTurn{{Speaker: "system", Text: out.Transcript}},
				Status:           "completed",
				CreatedAt:        time.Now(),
			}
			if err := st.InsertEngagementCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert engagement case: %w", err)
			}
			if err := st.AdvanceSchedulingStatus(ctx, in.SchedulingID, models.SchedulingStatusEngagementComplete); err != nil {
				return nil, false, fmt.Errorf("advance scheduling status: %w", err)
			}

			if out.CustomerDecision == "confirmed" && out.BookingID != nil {
				booking := models.Booking{
					BookingID:     *out.BookingID,
					CaseID:        in.CaseID,
					VehicleID:     in.VehicleID,
					ServiceCenter: in.ServiceCenter,
					ScheduledSlot: in.BestSlot,
					Status:        "confirmed",
					CreatedAt:     time.Now(),
				}
				if err := st.InsertBooking(ctx, booking); err != nil {
					return nil, false, fmt.Errorf("insert booking: %w", err)
				}
			}
			if wh != nil {
				wh.Mirror(store.TableEngagementCases, c)
			}

			return map[string]any{
				"engagement_id":     in.EngagementID,
				"case_id":           in.CaseID,
				"vehicle_id":        in.VehicleID,
				"customer_decision": out.CustomerDecision,
				"booking_id":        out.BookingID,
				"confidence":        engagementConfidence,
			}, true, nil
		},

		ExtraPublish: func(in modelInput, out modelOutput) (string, map[string]any, bool) {
			if in.Contact.Phone == "" {
				return "", nil, false
			}
			return models.TopicCommunicationTrigger, map[string]any{
				"engagement_id":  in.EngagementID,
				"case_id":        in.CaseID,
				"vehicle_id":     in.VehicleID,
				"customer_phone": in.Contact.Phone,
				"customer_name":  in.Contact.Name,
			}, true
		},
	}
}
