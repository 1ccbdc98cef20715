// Package orchestrator implements the pipeline's purely logical router:
// it consumes every stage's *-complete envelope, applies a confidence
// gate to the three critical stages, and republishes onto the next
// stage's input topic — or parks the case in human review. There is no
// model call here (spec.md §4.11).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/metrics"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

// ConfidenceThreshold is the routing cutoff below which a critical
// stage's decision is parked for human review instead of routed
// onward.
const ConfidenceThreshold = 0.85

// defaultConfidence is used when a stage carries no notion of
// confidence at all (scheduling, engagement, feedback, manufacturing)
// and the envelope itself doesn't supply one.
const defaultConfidence = 0.90

// Orchestrator routes agent output envelopes through the pipeline.
type Orchestrator struct {
	store     *store.Store
	publisher *bus.Publisher
	warehouse *warehouse.Sink
	metrics   *metrics.Registry
}

// New builds an Orchestrator. wh and m may be nil to disable warehouse
// mirroring and metrics respectively.
func New(st *store.Store, pub *bus.Publisher, wh *warehouse.Sink, m *metrics.Registry) *Orchestrator {
	return &Orchestrator{store: st, publisher: pub, warehouse: wh, metrics: m}
}

// observe records a routing decision if metrics are enabled.
func (o *Orchestrator) observe(stage, decision string) {
	if o.metrics != nil {
		o.metrics.ObserveRouting(stage, decision)
	}
}

// Topics lists every *-complete/*-detected topic the orchestrator must
// subscribe to in order to see every stage's output.
func Topics() []string {
	return []string{
		models.TopicAnomalyDetected,
		models.TopicDiagnosisComplete,
		models.TopicRCAComplete,
		models.TopicSchedulingComplete,
		models.TopicEngagementComplete,
		models.TopicCommunicationComplete,
		models.TopicFeedbackComplete,
		models.TopicManufacturingComplete,
	}
}

// Register subscribes the orchestrator's Handle method to every topic
// in Topics().
func (o *Orchestrator) Register(sub *bus.Subscriber) {
	for _, topic := range Topics() {
		sub.Subscribe(topic, o.Handle)
	}
}

// Handle is the bus.Handler invoked for every envelope the orchestrator
// sees, regardless of which topic it arrived on.
func (o *Orchestrator) Handle(ctx context.Context, env bus.Envelope) error {
	stage := inferAgentStage(env)
	if stage == "" {
		slog.Error("orchestrator: could not determine agent stage", "keys", keys(env))
		return fmt.Errorf("orchestrator: %w: unrecognized envelope shape", bus.ErrMalformedEnvelope)
	}

	caseID := env.CaseID()
	if caseID == "" {
		slog.Error("orchestrator: missing case_id", "agent_stage", stage)
		return fmt.Errorf("orchestrator: %w: missing case_id", bus.ErrMalformedEnvelope)
	}
	vehicleID := env.String("vehicle_id")

	confidence := o.resolveConfidence(ctx, stage, env)

	if models.IsCriticalStage(stage) && confidence < ConfidenceThreshold {
		return o.routeToHumanReview(ctx, caseID, vehicleID, stage, confidence, env)
	}

	nextStage, hasNext := models.NextStage(stage)
	if !hasNext {
		return o.finish(ctx, caseID, stage, confidence)
	}

	nextTopic, ok := models.InputTopicFor(nextStage)
	if !ok {
		slog.Warn("orchestrator: no input topic for next stage", "next_stage", nextStage)
		return o.finish(ctx, caseID, stage, confidence)
	}

	routed := make(bus.Envelope, len(env)+1)
	for k, v := range env {
		routed[k] = v
	}
	routed["agent_stage"] = nextStage

	if err := o.publisher.Publish(ctx, nextTopic, routed); err != nil {
		return fmt.Errorf("orchestrator: publish to %s: %w", nextTopic, err)
	}

	if err := o.updatePipelineState(ctx, caseID, stage, nextStage, confidence); err != nil {
		return err
	}

	o.observe(stage, "routed")
	slog.Info("orchestrator: routed", "case_id", caseID, "from", stage, "to", nextStage, "confidence", confidence)
	return nil
}

// routeToHumanReview parks a low-confidence critical-stage decision.
// The review write is fatal on failure — a silently dropped case would
// vanish from the pipeline with no trace (spec.md §7).
func (o *Orchestrator) routeToHumanReview(ctx context.Context, caseID, vehicleID, stage string, confidence float64, env bus.Envelope) error {
	severity := env.String("severity")
	if severity == "" {
		if sev, ok := env.Float64("severity_score"); ok {
			severity = fmt.Sprintf("%.2f", sev)
		}
	}
	predictionID := caseID

	review := models.HumanReview{
		ReviewID:     fmt.Sprintf("%s_%s", caseID, stage),
		CaseID:       caseID,
		VehicleID:    vehicleID,
		AgentStage:   stage,
		Confidence:   confidence,
		Severity:     strPtr(severity),
		PredictionID: strPtr(predictionID),
		ReviewStatus: "pending",
		MessageData:  env,
		CreatedAt:    time.Now(),
	}
	if err := o.store.InsertHumanReview(ctx, review); err != nil {
		return fmt.Errorf("orchestrator: insert human review: %w", err)
	}

	if err := o.updatePipelineState(ctx, caseID, stage, "human_review", confidence); err != nil {
		return err
	}

	o.observe(stage, "human_review")
	slog.Info("orchestrator: routed to human review", "case_id", caseID, "agent_stage", stage, "confidence", confidence)
	return nil
}

// finish records a terminal stage reaching the end of its path.
func (o *Orchestrator) finish(ctx context.Context, caseID, stage string, confidence float64) error {
	if err := o.updatePipelineState(ctx, caseID, stage, "completed", confidence); err != nil {
		return err
	}
	o.observe(stage, "completed")
	slog.Info("orchestrator: pipeline complete", "case_id", caseID, "final_stage", stage)
	return nil
}

// updatePipelineState writes the routing decision to the store and
// best-effort mirrors it to the warehouse. A warehouse failure is
// logged and swallowed; a store failure is fatal (spec.md §7, §4.11).
func (o *Orchestrator) updatePipelineState(ctx context.Context, caseID, currentStage, nextStage string, confidence float64) error {
	state := models.PipelineState{
		CaseID:       caseID,
		CurrentStage: currentStage,
		NextStage:    strPtr(nextStage),
		Confidence:   confidence,
		UpdatedAt:    time.Now(),
	}
	if err := o.store.UpsertPipelineState(ctx, state); err != nil {
		return fmt.Errorf("orchestrator: update pipeline state: %w", err)
	}
	if o.warehouse != nil {
		o.warehouse.Mirror(store.TablePipelineStates, state)
	}
	return nil
}

// resolveConfidence extracts confidence from the envelope, falling back
// to a stage-specific store lookup, then a stage-specific default, and
// finally the threshold itself — mirroring master_orchestrator.py's
// fallback chain exactly (spec.md §4.11).
func (o *Orchestrator) resolveConfidence(ctx context.Context, stage string, env bus.Envelope) float64 {
	if c, ok := env.Float64("confidence"); ok {
		return c
	}

	switch stage {
	case models.AgentStageDataAnalysis:
		if sev, ok := env.Float64("severity_score"); ok {
			return 1.0 - sev
		}
	case models.AgentStageDiagnosis:
		// The diagnosis stage persists no separate confidence_score field,
		// so failure_probability doubles as the confidence proxy here —
		// the same fallback master_orchestrator.py takes when
		// confidence_score is absent.
		if diagnosisID := env.String("diagnosis_id"); diagnosisID != "" {
			d, err := o.store.GetDiagnosisCase(ctx, diagnosisID)
			if err == nil {
				return d.FailureProbability
			}
		}
	case models.AgentStageRCA:
		if rcaID := env.String("rca_id"); rcaID != "" {
			r, err := o.store.GetRCACase(ctx, rcaID)
			if err == nil {
				return r.Confidence
			}
		}
	case models.AgentStageScheduling, models.AgentStageEngagement, models.AgentStageFeedback, models.AgentStageManufacturing:
		return defaultConfidence
	}

	slog.Warn("orchestrator: no confidence found, using default", "agent_stage", stage, "default", ConfidenceThreshold)
	return ConfidenceThreshold
}

// inferAgentStage returns the envelope's explicit agent_stage tag, or
// infers it from which id-bearing fields are present — the same
// fallback master_orchestrator.py applies when a producer omits the
// tag (spec.md §4.11).
func inferAgentStage(env bus.Envelope) string {
	if stage := env.AgentStage(); stage != "" {
		return stage
	}

	switch {
	case env.Has("case_id") && env.Has("anomaly_type"):
		return models.AgentStageDataAnalysis
	case env.Has("diagnosis_id"):
		return models.AgentStageDiagnosis
	case env.Has("rca_id"):
		return models.AgentStageRCA
	case env.Has("scheduling_id"):
		return models.AgentStageScheduling
	case env.Has("engagement_id"):
		return models.AgentStageEngagement
	case env.Has("feedback_id"):
		return models.AgentStageFeedback
	case env.Has("manufacturing_id"):
		return models.AgentStageManufacturing
	case env.Has("communication_id"):
		return models.AgentStageCommunication
	default:
		return ""
	}
}

func keys(env bus.Envelope) []string {
	ks := make([]string, 0, len(env))
	for k := range env {
		ks = append(ks, k)
	}
	return ks
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
