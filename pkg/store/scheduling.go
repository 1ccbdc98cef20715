package store

import (
	"context"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertSchedulingCase(ctx context.Context, c models.SchedulingCase) error {
	return s.insertDocument(ctx, TableSchedulingCases, map[string]any{
		"id":         c.SchedulingID,
		"rca_id":     c.RCAID,
		"case_id":    c.CaseID,
		"vehicle_id": c.VehicleID,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	}, c)
}

func (s *Store) GetSchedulingCase(ctx context.Context, schedulingID string) (models.SchedulingCase, error) {
	var c models.SchedulingCase
	err := s.getDocument(ctx, TableSchedulingCases, "id", schedulingID, &c)
	return c, err
}

func (s *Store) AdvanceSchedulingStatus(ctx context.Context, schedulingID, status string) error {
	return s.updateStatus(ctx, TableSchedulingCases, "id", schedulingID, status)
}

func SchedulingAdvancedBeyondEngagement(status string) bool {
	return status == models.SchedulingStatusEngagementComplete
}
