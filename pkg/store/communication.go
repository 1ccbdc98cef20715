package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertCommunicationCase(ctx context.Context, c models.CommunicationCase) error {
	return s.insertDocument(ctx, TableCommunicationCases, map[string]any{
		"id":            c.CommunicationID,
		"engagement_id": c.EngagementID,
		"case_id":       c.CaseID,
		"vehicle_id":    c.VehicleID,
		"call_sid":      nullIfEmpty(c.CallSID),
		"status":        c.CallStatus,
		"created_at":    c.CreatedAt,
		"updated_at":    c.UpdatedAt,
	}, c)
}

func (s *Store) GetCommunicationCase(ctx context.Context, communicationID string) (models.CommunicationCase, error) {
	var c models.CommunicationCase
	err := s.getDocument(ctx, TableCommunicationCases, "id", communicationID, &c)
	return c, err
}

func (s *Store) GetCommunicationCaseByCallSID(ctx context.Context, callSID string) (models.CommunicationCase, error) {
	var c models.CommunicationCase
	err := s.getDocument(ctx, TableCommunicationCases, "call_sid", callSID, &c)
	return c, err
}

// UpdateCommunicationCase rewrites the full payload plus the indexed
// status/updated_at columns, used by the webhook after each turn.
func (s *Store) UpdateCommunicationCase(ctx context.Context, c models.CommunicationCase) error {
	body, err := marshalJSON(c)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET payload = $1, status = $2, updated_at = $3 WHERE id = $4`,
		TableCommunicationCases,
	)
	res, err := s.DB.ExecContext(ctx, query, body, c.CallStatus, c.UpdatedAt, c.CommunicationID)
	if err != nil {
		return fmt.Errorf("update communication case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
