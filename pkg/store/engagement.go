package store

import (
	"context"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertEngagementCase(ctx context.Context, c models.EngagementCase) error {
	return s.insertDocument(ctx, TableEngagementCases, map[string]any{
		"id":            c.EngagementID,
		"scheduling_id": c.SchedulingID,
		"case_id":       c.CaseID,
		"vehicle_id":    c.VehicleID,
		"status":        c.Status,
		"created_at":    c.CreatedAt,
	}, c)
}

func (s *Store) GetEngagementCase(ctx context.Context, engagementID string) (models.EngagementCase, error) {
	var c models.EngagementCase
	err := s.getDocument(ctx, TableEngagementCases, "id", engagementID, &c)
	return c, err
}
