package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/store"
)

// Publisher appends a message to bus_messages and issues pg_notify in the
// same transaction, so a subscriber's LISTEN wakeup can never race ahead
// of the row it is meant to announce.
type Publisher struct {
	store *store.Store
}

// NewPublisher creates a Publisher backed by store.
func NewPublisher(s *store.Store) *Publisher {
	return &Publisher{store: s}
}

// Publish marshals envelope to JSON and durably enqueues it on topic.
// envelope may be an Envelope, a struct with json tags, or any other
// json.Marshaler-compatible value. If envelope carries a "case_id" field
// (directly, or via a struct json tag), it is copied into bus_messages.case_id
// so operators can filter the table by case during an incident.
func (p *Publisher) Publish(ctx context.Context, topic string, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("bus: marshal envelope: %w", err)
	}

	caseID := extractCaseID(payload)

	tx, err := p.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bus: begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bus_messages (topic, payload, case_id) VALUES ($1, $2, $3)`,
		topic, payload, caseID,
	); err != nil {
		return fmt.Errorf("bus: insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, topic, topic); err != nil {
		return fmt.Errorf("bus: pg_notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bus: commit publish tx: %w", err)
	}
	return nil
}

// extractCaseID best-effort pulls a top-level "case_id" string out of a
// marshaled JSON payload. Returns nil if absent — bus_messages.case_id is
// nullable and exists only as an operational filter, never as a join key.
func extractCaseID(payload []byte) *string {
	var probe struct {
		CaseID string `json:"case_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.CaseID == "" {
		return nil
	}
	return &probe.CaseID
}
