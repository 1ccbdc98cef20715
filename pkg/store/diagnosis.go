package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertDiagnosisCase(ctx context.Context, c models.DiagnosisCase) error {
	return s.insertDocument(ctx, TableDiagnosisCases, map[string]any{
		"id":         c.DiagnosisID,
		"case_id":    c.CaseID,
		"vehicle_id": c.VehicleID,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	}, c)
}

func (s *Store) GetDiagnosisCase(ctx context.Context, diagnosisID string) (models.DiagnosisCase, error) {
	var c models.DiagnosisCase
	err := s.getDocument(ctx, TableDiagnosisCases, "id", diagnosisID, &c)
	return c, err
}

// GetDiagnosisCaseByCaseID returns the most recent diagnosis case raised
// for caseID, used by the manufacturing stage to recover the affected
// component from a case_id handed down through feedback (spec.md §4.10).
func (s *Store) GetDiagnosisCaseByCaseID(ctx context.Context, caseID string) (models.DiagnosisCase, error) {
	query := fmt.Sprintf(
		`SELECT payload FROM %s WHERE case_id = $1 ORDER BY created_at DESC LIMIT 1`,
		TableDiagnosisCases,
	)
	var body []byte
	if err := s.DB.QueryRowxContext(ctx, query, caseID).Scan(&body); err != nil {
		if isNoRows(err) {
			return models.DiagnosisCase{}, ErrNotFound
		}
		return models.DiagnosisCase{}, fmt.Errorf("get diagnosis case by case id: %w", err)
	}
	var c models.DiagnosisCase
	if err := unmarshalJSON(body, &c); err != nil {
		return models.DiagnosisCase{}, err
	}
	return c, nil
}

func (s *Store) AdvanceDiagnosisStatus(ctx context.Context, diagnosisID, status string) error {
	return s.updateStatus(ctx, TableDiagnosisCases, "id", diagnosisID, status)
}

func DiagnosisAdvancedBeyondRCA(status string) bool {
	switch status {
	case models.DiagnosisStatusRCAComplete, models.DiagnosisStatusScheduled,
		models.DiagnosisStatusEngaged, models.DiagnosisStatusCompleted:
		return true
	default:
		return false
	}
}
