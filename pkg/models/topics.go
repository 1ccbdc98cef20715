package models

// Topic names. Bus-level names are arbitrary; the contract is the field
// set each one carries.
const (
	TopicTelemetryIngested    = "telemetry-ingested"
	TopicAnomalyDetected      = "anomaly-detected"
	TopicDiagnosisComplete    = "diagnosis-complete"
	TopicRCAComplete          = "rca-complete"
	TopicSchedulingComplete   = "scheduling-complete"
	TopicEngagementComplete   = "engagement-complete"
	TopicCommunicationTrigger = "communication-trigger"
	TopicCommunicationComplete = "communication-complete"
	TopicFeedbackTrigger      = "feedback-trigger"
	TopicFeedbackComplete     = "feedback-complete"
	TopicManufacturingComplete = "manufacturing-complete"
)

// Agent stage tags, stamped into every envelope's agent_stage field.
const (
	AgentStageDataAnalysis  = "data_analysis"
	AgentStageDiagnosis     = "diagnosis"
	AgentStageRCA           = "rca"
	AgentStageScheduling    = "scheduling"
	AgentStageEngagement    = "engagement"
	AgentStageCommunication = "communication"
	AgentStageFeedback      = "feedback"
	AgentStageManufacturing = "manufacturing"
)

// TelemetryIngestedPayload is published by pkg/ingest right after the
// telemetry insert; the insert and the publish are separate writes.
type TelemetryIngestedPayload struct {
	EventID   string `json:"event_id"`
	VehicleID string `json:"vehicle_id"`
	Timestamp string `json:"timestamp"`
}

// AnomalyDetectedPayload is published by pkg/stages/anomaly.
type AnomalyDetectedPayload struct {
	CaseID        string   `json:"case_id"`
	VehicleID     string   `json:"vehicle_id"`
	AnomalyType   string   `json:"anomaly_type"`
	SeverityScore float64  `json:"severity_score"`
	DTCCodes      []string `json:"dtc_codes,omitempty"`
	Severity      string   `json:"severity"`
	Confidence    float64  `json:"confidence"`
	AgentStage    string   `json:"agent_stage"`
}

// DiagnosisCompletePayload is published by pkg/stages/diagnosis.
type DiagnosisCompletePayload struct {
	DiagnosisID        string  `json:"diagnosis_id"`
	CaseID             string  `json:"case_id"`
	VehicleID          string  `json:"vehicle_id"`
	Component          string  `json:"component"`
	FailureProbability float64 `json:"failure_probability"`
	EstimatedRULDays   int     `json:"estimated_rul_days"`
	Severity           string  `json:"severity"`
	Confidence         float64 `json:"confidence"`
	AgentStage         string  `json:"agent_stage"`
}

// RCACompletePayload is published by pkg/stages/rca.
type RCACompletePayload struct {
	RCAID             string  `json:"rca_id"`
	DiagnosisID       string  `json:"diagnosis_id"`
	CaseID            string  `json:"case_id"`
	VehicleID         string  `json:"vehicle_id"`
	RootCause         string  `json:"root_cause"`
	Confidence        float64 `json:"confidence"`
	RecommendedAction string  `json:"recommended_action"`
	CAPAType          string  `json:"capa_type"`
	AgentStage        string  `json:"agent_stage"`
}

// SchedulingCompletePayload is published by pkg/stages/scheduling.
type SchedulingCompletePayload struct {
	SchedulingID  string   `json:"scheduling_id"`
	RCAID         string   `json:"rca_id"`
	CaseID        string   `json:"case_id"`
	VehicleID     string   `json:"vehicle_id"`
	BestSlot      string   `json:"best_slot"`
	ServiceCenter string   `json:"service_center"`
	SlotType      string   `json:"slot_type"`
	FallbackSlots []string `json:"fallback_slots"`
}

// EngagementCompletePayload is published by pkg/stages/engagement.
type EngagementCompletePayload struct {
	EngagementID     string  `json:"engagement_id"`
	CaseID           string  `json:"case_id"`
	VehicleID        string  `json:"vehicle_id"`
	CustomerDecision string  `json:"customer_decision"`
	BookingID        *string `json:"booking_id"`
	Confidence       float64 `json:"confidence"`
	AgentStage       string  `json:"agent_stage"`
}

// CommunicationTriggerPayload is published alongside engagement-complete
// when a customer phone number is available.
type CommunicationTriggerPayload struct {
	EngagementID  string `json:"engagement_id"`
	CaseID        string `json:"case_id"`
	VehicleID     string `json:"vehicle_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name"`
}

// CommunicationCompletePayload is published when a call reaches a
// terminal state.
type CommunicationCompletePayload struct {
	CommunicationID string  `json:"communication_id"`
	EngagementID    string  `json:"engagement_id"`
	CaseID          string  `json:"case_id"`
	VehicleID       string  `json:"vehicle_id"`
	Outcome         string  `json:"outcome"`
	BookingID       *string `json:"booking_id"`
}

// FeedbackTriggerPayload is what pkg/ingest publishes on behalf of an
// operator submitting post-service feedback via HTTP (spec.md §4.10).
// PostServiceTelemetry is optional — when omitted, the feedback stage
// auto-fetches the vehicle's most recent telemetry events.
type FeedbackTriggerPayload struct {
	BookingID             string           `json:"booking_id"`
	VehicleID             string           `json:"vehicle_id"`
	TechnicianNotes       string           `json:"technician_notes"`
	CustomerRating        float64          `json:"customer_rating"`
	PostServiceTelemetry  []TelemetryEvent `json:"post_service_telemetry,omitempty"`
}

// FeedbackCompletePayload is published by pkg/stages/feedback.
type FeedbackCompletePayload struct {
	FeedbackID         string  `json:"feedback_id"`
	BookingID          string  `json:"booking_id"`
	CaseID             string  `json:"case_id"`
	VehicleID          string  `json:"vehicle_id"`
	ValidationLabel    string  `json:"validation_label"`
	RecommendedRetrain bool    `json:"recommended_retrain"`
	Confidence         float64 `json:"confidence"`
	AgentStage         string  `json:"agent_stage"`
}

// ManufacturingCompletePayload is published by pkg/stages/manufacturing.
type ManufacturingCompletePayload struct {
	ManufacturingID string  `json:"manufacturing_id"`
	FeedbackID      string  `json:"feedback_id"`
	CaseID          string  `json:"case_id"`
	VehicleID       string  `json:"vehicle_id"`
	Severity        string  `json:"severity"`
	Confidence      float64 `json:"confidence"`
	AgentStage      string  `json:"agent_stage"`
}

// criticalStages are the three stages the orchestrator confidence-gates.
var criticalStages = map[string]bool{
	AgentStageDataAnalysis: true,
	AgentStageDiagnosis:    true,
	AgentStageRCA:          true,
}

// IsCriticalStage reports whether the orchestrator must confidence-gate
// decisions produced by this stage.
func IsCriticalStage(stage string) bool {
	return criticalStages[stage]
}

// pipelineFlow is the static successor table driving orchestrator
// routing (spec.md §4.11).
var pipelineFlow = map[string]string{
	AgentStageDataAnalysis: AgentStageDiagnosis,
	AgentStageDiagnosis:    AgentStageRCA,
	AgentStageRCA:          AgentStageScheduling,
	AgentStageScheduling:   AgentStageEngagement,
	AgentStageFeedback:     AgentStageManufacturing,
}

// NextStage returns the successor stage for the given producing stage,
// and false if the stage is terminal.
func NextStage(stage string) (string, bool) {
	next, ok := pipelineFlow[stage]
	return next, ok
}

// stageTopics maps an agent_stage tag to the topic that stage's own
// worker consumes from, which is where the orchestrator republishes to
// hand a case to it.
var stageTopics = map[string]string{
	AgentStageDiagnosis:  TopicAnomalyDetected,
	AgentStageRCA:        TopicDiagnosisComplete,
	AgentStageScheduling: TopicRCAComplete,
	AgentStageEngagement: TopicSchedulingComplete,
	AgentStageManufacturing: TopicFeedbackComplete,
}

// InputTopicFor returns the topic a stage worker consumes from.
func InputTopicFor(stage string) (string, bool) {
	t, ok := stageTopics[stage]
	return t, ok
}
