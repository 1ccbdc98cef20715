package store

// This file documents the JSONB column layout of every document-store
// collection, the way ent/schema/*.go documents a relational schema —
// except there is no generator here; the migrations in ./migrations are
// the source of truth and this file exists for humans reading the repo.
//
// Every collection table follows the same shape:
//
//	id         text primary key   -- stage-prefixed opaque ID, e.g. case_<hex>
//	payload    jsonb not null     -- full record, marshaled from pkg/models
//	created_at timestamptz not null
//
// plus a handful of plain columns lifted out of payload for indexing,
// because the gate queries of §4.3 filter and order on them:
//
//	telemetry_events:   vehicle_id, timestamp
//	anomaly_cases:      vehicle_id, status                     (index: vehicle_id, created_at — Gate A/B/C)
//	diagnosis_cases:    case_id, vehicle_id, status             (index: case_id)
//	rca_cases:          diagnosis_id, case_id, vehicle_id, status (index: diagnosis_id)
//	scheduling_cases:   rca_id, case_id, vehicle_id, status      (index: rca_id)
//	engagement_cases:   scheduling_id, case_id, vehicle_id, status (index: scheduling_id)
//	bookings:           case_id, vehicle_id, status
//	communication_cases: engagement_id, case_id, vehicle_id, call_sid (index: engagement_id, call_sid)
//	feedback_cases:     booking_id, case_id, vehicle_id
//	manufacturing_cases: feedback_id, case_id, vehicle_id
//	pipeline_states:    case_id primary key (no separate id column)
//	human_reviews:      review_id primary key, unique (case_id, agent_stage)
//	call_contexts:      call_sid primary key
//
// bus_messages (pkg/bus) is the one table outside the document store:
//
//	id          bigserial primary key
//	topic       text not null                  (index: topic, visible_at)
//	payload     jsonb not null
//	case_id     text
//	attempts    int not null default 0
//	visible_at  timestamptz not null default now()
//	created_at  timestamptz not null default now()

// Table name constants, referenced by every repository file in this
// package so the SQL and the migrations stay in lockstep.
const (
	TableTelemetryEvents    = "telemetry_events"
	TableAnomalyCases       = "anomaly_cases"
	TableDiagnosisCases     = "diagnosis_cases"
	TableRCACases           = "rca_cases"
	TableSchedulingCases    = "scheduling_cases"
	TableEngagementCases    = "engagement_cases"
	TableBookings           = "bookings"
	TableCommunicationCases = "communication_cases"
	TableFeedbackCases      = "feedback_cases"
	TableManufacturingCases = "manufacturing_cases"
	TablePipelineStates     = "pipeline_states"
	TableHumanReviews       = "human_reviews"
	TableCallContexts       = "call_contexts"
	TableBusMessages        = "bus_messages"
)
