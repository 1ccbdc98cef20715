package store

import (
	"context"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertFeedbackCase(ctx context.Context, c models.FeedbackCase) error {
	return s.insertDocument(ctx, TableFeedbackCases, map[string]any{
		"id":         c.FeedbackID,
		"booking_id": c.BookingID,
		"case_id":    c.CaseID,
		"vehicle_id": c.VehicleID,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	}, c)
}

func (s *Store) GetFeedbackCase(ctx context.Context, feedbackID string) (models.FeedbackCase, error) {
	var c models.FeedbackCase
	err := s.getDocument(ctx, TableFeedbackCases, "id", feedbackID, &c)
	return c, err
}
