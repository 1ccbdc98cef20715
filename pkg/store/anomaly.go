package store

import (
	"context"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// InsertAnomalyCase persists a new anomaly case.
func (s *Store) InsertAnomalyCase(ctx context.Context, c models.AnomalyCase) error {
	return s.insertDocument(ctx, TableAnomalyCases, map[string]any{
		"id":         c.CaseID,
		"vehicle_id": c.VehicleID,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	}, c)
}

// GetAnomalyCase loads an anomaly case by ID.
func (s *Store) GetAnomalyCase(ctx context.Context, caseID string) (models.AnomalyCase, error) {
	var c models.AnomalyCase
	err := s.getDocument(ctx, TableAnomalyCases, "id", caseID, &c)
	return c, err
}

// AdvanceAnomalyStatus updates the anomaly case's status column/payload.
func (s *Store) AdvanceAnomalyStatus(ctx context.Context, caseID, status string) error {
	return s.updateStatus(ctx, TableAnomalyCases, "id", caseID, status)
}

// AnomalyAdvancedBeyondDiagnosis reports whether an anomaly case has
// already moved past the diagnosis-dispatch point — used by the
// diagnosis stage's Gate A/B/C "missing prerequisite" check.
func AnomalyAdvancedBeyondDiagnosis(status string) bool {
	switch status {
	case models.AnomalyStatusDiagnosing, models.AnomalyStatusDiagnosed,
		models.AnomalyStatusScheduled, models.AnomalyStatusEngaged, models.AnomalyStatusCompleted:
		return true
	default:
		return false
	}
}
