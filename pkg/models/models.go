// Package models holds the plain Go structs for every document-store
// entity and bus envelope payload named by the pipeline contract.
package models

import "time"

// Status constants are lowercase snake_case strings, matching the wire
// contract exactly so they round-trip through JSONB without translation.
const (
	AnomalyStatusPendingDiagnosis = "pending_diagnosis"
	AnomalyStatusDiagnosing       = "diagnosing"
	AnomalyStatusDiagnosed        = "diagnosed"
	AnomalyStatusScheduled        = "scheduled"
	AnomalyStatusEngaged          = "engaged"
	AnomalyStatusCompleted        = "completed"

	DiagnosisStatusPendingRCA   = "pending_rca"
	DiagnosisStatusRCAComplete = "rca_complete"
	DiagnosisStatusScheduled   = "scheduled"
	DiagnosisStatusEngaged     = "engaged"
	DiagnosisStatusCompleted   = "completed"

	RCAStatusPendingScheduling = "pending_scheduling"
	RCAStatusScheduled         = "scheduled"
	RCAStatusEngaged           = "engaged"
	RCAStatusCompleted         = "completed"

	SchedulingStatusPendingEngagement  = "pending_engagement"
	SchedulingStatusEngagementComplete = "engagement_complete"

	BookingStatusConfirmed       = "confirmed"
	BookingStatusPending         = "pending"
	BookingStatusFeedbackComplete = "feedback_complete"

	FeedbackStatusComplete = "complete"

	ManufacturingStatusComplete = "complete"

	ReviewStatusPending  = "pending"
	ReviewStatusResolved = "resolved"
)

// Anomaly type enum (closed set, §3/§4.4).
const (
	AnomalyThermalOverheat    = "thermal_overheat"
	AnomalyOilOverheat        = "oil_overheat"
	AnomalyBatteryDegradation = "battery_degradation"
	AnomalyLowCharge          = "low_charge"
	AnomalyRPMSpike           = "rpm_spike"
	AnomalyRPMStall           = "rpm_stall"
	AnomalyDTCFault           = "dtc_fault"
	AnomalySpeedAnomaly       = "speed_anomaly"
	AnomalyGPSAnomaly         = "gps_anomaly"
)

const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

const (
	CAPACorrective = "Corrective"
	CAPAPreventive = "Preventive"
)

const (
	SlotTypeUrgent  = "urgent"
	SlotTypeNormal  = "normal"
	SlotTypeDelayed = "delayed"
)

const (
	DecisionConfirmed  = "confirmed"
	DecisionDeclined   = "declined"
	DecisionNoResponse = "no_response"
)

const (
	ValidationCorrect   = "Correct"
	ValidationRecurring = "Recurring"
	ValidationIncorrect = "Incorrect"
)

const (
	CallStatusInitiating = "initiating"
	CallStatusInitiated  = "initiated"
	CallStatusRinging    = "ringing"
	CallStatusAnswered   = "answered"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

const (
	ConversationPending     = "pending"
	ConversationGreeting    = "greeting"
	ConversationExplanation = "explanation"
	ConversationScheduling  = "scheduling"
	ConversationQuestions   = "questions"
	ConversationCompleted   = "completed"
)

// TelemetryEvent is one ingested vehicle sample. Immutable after insert.
type TelemetryEvent struct {
	EventID        string    `json:"event_id" db:"event_id"`
	VehicleID      string    `json:"vehicle_id" db:"vehicle_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	Speed          float64   `json:"speed" db:"speed"`
	Odometer       float64   `json:"odometer" db:"odometer"`
	EngineRPM      float64   `json:"engine_rpm" db:"engine_rpm"`
	CoolantTempC   float64   `json:"coolant_temp_c" db:"coolant_temp_c"`
	OilTempC       float64   `json:"oil_temp_c" db:"oil_temp_c"`
	FuelPercent    float64   `json:"fuel_percent" db:"fuel_percent"`
	BatterySoC     float64   `json:"battery_soc" db:"battery_soc"`
	BatterySoH     float64   `json:"battery_soh" db:"battery_soh"`
	DTCCodes       []string  `json:"dtc_codes" db:"dtc_codes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AnomalyCase is the anomaly-detection stage's output record.
type AnomalyCase struct {
	CaseID            string    `json:"case_id" db:"case_id"`
	VehicleID         string    `json:"vehicle_id" db:"vehicle_id"`
	AnomalyDetected   bool      `json:"anomaly_detected" db:"anomaly_detected"`
	AnomalyType       *string   `json:"anomaly_type" db:"anomaly_type"`
	SeverityScore     *float64  `json:"severity_score" db:"severity_score"`
	DTCCodes          []string  `json:"dtc_codes,omitempty" db:"dtc_codes"`
	TelemetryEventIDs []string  `json:"telemetry_event_ids" db:"telemetry_event_ids"`
	Status            string    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// DiagnosisCase is the diagnosis stage's output record.
type DiagnosisCase struct {
	DiagnosisID       string    `json:"diagnosis_id" db:"diagnosis_id"`
	CaseID            string    `json:"case_id" db:"case_id"`
	VehicleID         string    `json:"vehicle_id" db:"vehicle_id"`
	Component         string    `json:"component" db:"component"`
	FailureProbability float64  `json:"failure_probability" db:"failure_probability"`
	EstimatedRULDays  int       `json:"estimated_rul_days" db:"estimated_rul_days"`
	Severity          string    `json:"severity" db:"severity"`
	ContextEventIDs   []string  `json:"context_event_ids" db:"context_event_ids"`
	Status            string    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RCACase is the root-cause-analysis stage's output record.
type RCACase struct {
	RCAID              string    `json:"rca_id" db:"rca_id"`
	DiagnosisID        string    `json:"diagnosis_id" db:"diagnosis_id"`
	CaseID             string    `json:"case_id" db:"case_id"`
	VehicleID          string    `json:"vehicle_id" db:"vehicle_id"`
	RootCause          string    `json:"root_cause" db:"root_cause"`
	Confidence         float64   `json:"confidence" db:"confidence"`
	RecommendedAction  string    `json:"recommended_action" db:"recommended_action"`
	CAPAType           string    `json:"capa_type" db:"capa_type"`
	Status             string    `json:"status" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// SchedulingCase is the scheduling stage's output record.
type SchedulingCase struct {
	SchedulingID  string    `json:"scheduling_id" db:"scheduling_id"`
	RCAID         string    `json:"rca_id" db:"rca_id"`
	DiagnosisID   string    `json:"diagnosis_id" db:"diagnosis_id"`
	CaseID        string    `json:"case_id" db:"case_id"`
	VehicleID     string    `json:"vehicle_id" db:"vehicle_id"`
	BestSlot      time.Time `json:"best_slot" db:"best_slot"`
	ServiceCenter string    `json:"service_center" db:"service_center"`
	SlotType      string    `json:"slot_type" db:"slot_type"`
	FallbackSlots []time.Time `json:"fallback_slots" db:"fallback_slots"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TranscriptTurn is one dialogue turn in an engagement or communication
// transcript.
type TranscriptTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// EngagementCase is the engagement stage's output record.
type EngagementCase struct {
	EngagementID      string            `json:"engagement_id" db:"engagement_id"`
	SchedulingID      string            `json:"scheduling_id" db:"scheduling_id"`
	RCAID             string            `json:"rca_id" db:"rca_id"`
	CaseID            string            `json:"case_id" db:"case_id"`
	VehicleID         string            `json:"vehicle_id" db:"vehicle_id"`
	CustomerPhone     string            `json:"customer_phone" db:"customer_phone"`
	CustomerName      string            `json:"customer_name" db:"customer_name"`
	CustomerDecision  string            `json:"customer_decision" db:"customer_decision"`
	BookingID         *string           `json:"booking_id" db:"booking_id"`
	Transcript        []TranscriptTurn  `json:"transcript" db:"transcript"`
	Status            string            `json:"status" db:"status"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// Booking is an agent-issued service appointment.
type Booking struct {
	BookingID     string    `json:"booking_id" db:"booking_id"`
	CaseID        string    `json:"case_id" db:"case_id"`
	VehicleID     string    `json:"vehicle_id" db:"vehicle_id"`
	ServiceCenter string    `json:"service_center" db:"service_center"`
	ScheduledSlot time.Time `json:"scheduled_slot" db:"scheduled_slot"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CommunicationCase tracks a live telephony conversation.
type CommunicationCase struct {
	CommunicationID        string           `json:"communication_id" db:"communication_id"`
	EngagementID           string           `json:"engagement_id" db:"engagement_id"`
	CaseID                 string           `json:"case_id" db:"case_id"`
	VehicleID              string           `json:"vehicle_id" db:"vehicle_id"`
	Phone                  string           `json:"phone" db:"phone"`
	Name                   string           `json:"name" db:"name"`
	CallStatus             string           `json:"call_status" db:"call_status"`
	ConversationStage      string           `json:"conversation_stage" db:"conversation_stage"`
	ConversationTranscript []TranscriptTurn `json:"conversation_transcript" db:"conversation_transcript"`
	Outcome                *string          `json:"outcome" db:"outcome"`
	BookingID              *string          `json:"booking_id" db:"booking_id"`
	CallSID                string           `json:"call_sid" db:"call_sid"`
	CreatedAt              time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at" db:"updated_at"`
}

// FeedbackCase captures post-service validation of a prediction.
type FeedbackCase struct {
	FeedbackID         string    `json:"feedback_id" db:"feedback_id"`
	BookingID          string    `json:"booking_id" db:"booking_id"`
	CaseID             string    `json:"case_id" db:"case_id"`
	VehicleID          string    `json:"vehicle_id" db:"vehicle_id"`
	CEIScore           float64   `json:"cei_score" db:"cei_score"`
	ValidationLabel    string    `json:"validation_label" db:"validation_label"`
	RecommendedRetrain bool      `json:"recommended_retrain" db:"recommended_retrain"`
	TechnicianNotes    string    `json:"technician_notes" db:"technician_notes"`
	CustomerRating     float64   `json:"customer_rating" db:"customer_rating"`
	Status             string    `json:"status" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// ManufacturingCase is the CAPA recommendation produced from aggregate
// feedback.
type ManufacturingCase struct {
	ManufacturingID        string    `json:"manufacturing_id" db:"manufacturing_id"`
	FeedbackID             string    `json:"feedback_id" db:"feedback_id"`
	CaseID                 string    `json:"case_id" db:"case_id"`
	VehicleID              string    `json:"vehicle_id" db:"vehicle_id"`
	Issue                  string    `json:"issue" db:"issue"`
	CAPARecommendation     string    `json:"capa_recommendation" db:"capa_recommendation"`
	Severity               string    `json:"severity" db:"severity"`
	RecurrenceClusterSize  int       `json:"recurrence_cluster_size" db:"recurrence_cluster_size"`
	VehicleRecurrenceCount int       `json:"vehicle_recurrence_count" db:"vehicle_recurrence_count"`
	AnomalyTypeFleetCount  int       `json:"anomaly_type_fleet_count" db:"anomaly_type_fleet_count"`
	ComponentFleetCount    int       `json:"component_fleet_count" db:"component_fleet_count"`
	Status                 string    `json:"status" db:"status"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}

// PipelineState is the orchestrator's per-case routing ledger.
type PipelineState struct {
	CaseID       string    `json:"case_id" db:"case_id"`
	CurrentStage string    `json:"current_stage" db:"current_stage"`
	NextStage    *string   `json:"next_stage" db:"next_stage"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HumanReview is created when the orchestrator gates a critical stage on
// low confidence.
type HumanReview struct {
	ReviewID     string          `json:"review_id" db:"review_id"`
	CaseID       string          `json:"case_id" db:"case_id"`
	VehicleID    string          `json:"vehicle_id" db:"vehicle_id"`
	AgentStage   string          `json:"agent_stage" db:"agent_stage"`
	Confidence   float64         `json:"confidence" db:"confidence"`
	Severity     *string         `json:"severity" db:"severity"`
	PredictionID *string         `json:"prediction_id" db:"prediction_id"`
	ReviewStatus string          `json:"review_status" db:"review_status"`
	MessageData  map[string]any  `json:"message_data" db:"message_data"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// CallContext lets the telephony webhook recover state by call_sid
// without touching the bus.
type CallContext struct {
	CallSID      string    `json:"call_sid" db:"call_sid"`
	CaseID       string    `json:"case_id" db:"case_id"`
	EngagementID string    `json:"engagement_id" db:"engagement_id"`
	VehicleID    string    `json:"vehicle_id" db:"vehicle_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
