package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// InsertCallContext persists the lookup the telephony webhook uses to
// recover case state by call_sid without touching the bus.
func (s *Store) InsertCallContext(ctx context.Context, cc models.CallContext) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (call_sid, case_id, engagement_id, vehicle_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, TableCallContexts)
	_, err := s.DB.ExecContext(ctx, query, cc.CallSID, cc.CaseID, cc.EngagementID, cc.VehicleID, cc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert call context: %w", err)
	}
	return nil
}

// GetCallContext looks up a call's case context by call_sid.
func (s *Store) GetCallContext(ctx context.Context, callSID string) (models.CallContext, error) {
	query := fmt.Sprintf(
		`SELECT call_sid, case_id, engagement_id, vehicle_id, created_at FROM %s WHERE call_sid = $1`,
		TableCallContexts,
	)
	var cc models.CallContext
	err := s.DB.QueryRowxContext(ctx, query, callSID).Scan(
		&cc.CallSID, &cc.CaseID, &cc.EngagementID, &cc.VehicleID, &cc.CreatedAt,
	)
	if isNoRows(err) {
		return models.CallContext{}, ErrNotFound
	}
	if err != nil {
		return models.CallContext{}, fmt.Errorf("get call context: %w", err)
	}
	return cc, nil
}
