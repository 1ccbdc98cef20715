// Package communication implements the communication stage: normalizes
// the customer phone number, places an outbound engagement call through
// Twilio, and persists the call-recovery context the telephony webhook
// uses to continue the conversation (spec.md §4.9).
//
// Unlike the other stages, this one never publishes a completion event
// on commit — the call is asynchronous, and communication-complete is
// published later by the webhook handler once the conversation reaches
// a terminal stage (original_source's twilio_webhook, not
// communication_agent).
package communication

import (
	"context"
	"fmt"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/telephony"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

type modelInput struct {
	CommunicationID string
	EngagementID    string
	CaseID          string
	VehicleID       string
	CustomerName    string
	Phone           string
}

// modelOutput is empty: this stage makes no model call, it places a
// phone call.
type modelOutput struct{}

// Descriptor builds the communication stage worker.
func Descriptor(svc *telephony.Service, wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageCommunication,
		OutputTopic:        models.TopicCommunicationComplete,
		DuplicateTable:     store.TableCommunicationCases,
		DuplicateKeyColumn: "engagement_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			engagementID := env.String("engagement_id")
			if engagementID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return engagementID, nil
		},
		IsAdvanced: func(status string) bool {
			return status != "" && status != models.CallStatusFailed
		},

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			engagementID := env.String("engagement_id")
			if engagementID == "" {
				return modelInput{}, fmt.Errorf("%w: missing engagement_id", stageworker.ErrMalformedInput)
			}
			phone := env.String("customer_phone")
			if phone == "" {
				return modelInput{}, stageworker.ErrSkipped
			}

			return modelInput{
				CommunicationID: store.NewID("comm"),
				EngagementID:    engagementID,
				CaseID:          env.String("case_id"),
				VehicleID:       env.String("vehicle_id"),
				CustomerName:    env.String("customer_name"),
				Phone:           telephony.NormalizePhone(phone),
			}, nil
		},

		// No model call: this step always skips straight to commit,
		// and Commit is where the outbound call is placed.
		AssemblePrompt: func(in modelInput) (string, error) {
			return "", stageworker.ErrSkipped
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			return modelOutput{}, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, _ modelOutput) (map[string]any, bool, error) {
			now := time.Now()
			c := models.CommunicationCase{
				CommunicationID:   in.CommunicationID,
				EngagementID:      in.EngagementID,
				CaseID:            in.CaseID,
				VehicleID:         in.VehicleID,
				Phone:             in.Phone,
				Name:              in.CustomerName,
				CallStatus:        models.CallStatusInitiating,
				ConversationStage: "pending",
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := st.InsertCommunicationCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert communication case: %w", err)
			}

			if !svc.Enabled() {
				c.CallStatus = models.CallStatusFailed
				c.UpdatedAt = time.Now()
				if err := st.UpdateCommunicationCase(ctx, c); err != nil {
					return nil, false, fmt.Errorf("update communication case (disabled): %w", err)
				}
				if wh != nil {
					wh.Mirror(store.TableCommunicationCases, c)
				}
				return nil, false, nil
			}

			callSID, err := svc.PlaceCall(in.Phone)
			if err != nil {
				c.CallStatus = models.CallStatusFailed
				c.UpdatedAt = time.Now()
				_ = st.UpdateCommunicationCase(ctx, c)
				if wh != nil {
					wh.Mirror(store.TableCommunicationCases, c)
				}
				return nil, false, fmt.Errorf("place call: %w", err)
			}

			c.CallSID = callSID
			c.CallStatus = models.CallStatusInitiated
			c.UpdatedAt = time.Now()
			if err := st.UpdateCommunicationCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("update communication case: %w", err)
			}
			if err := st.InsertCallContext(ctx, models.CallContext{
				CallSID:      callSID,
				CaseID:       in.CaseID,
				EngagementID: in.EngagementID,
				VehicleID:    in.VehicleID,
				CreatedAt:    now,
			}); err != nil {
				return nil, false, fmt.Errorf("insert call context: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableCommunicationCases, c)
			}

			// communication-complete is published by the webhook once
			// the conversation reaches a terminal stage, not here.
			return nil, false, nil
		},
	}
}
