package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertRCACase(ctx context.Context, c models.RCACase) error {
	return s.insertDocument(ctx, TableRCACases, map[string]any{
		"id":           c.RCAID,
		"diagnosis_id": c.DiagnosisID,
		"case_id":      c.CaseID,
		"vehicle_id":   c.VehicleID,
		"status":       c.Status,
		"created_at":   c.CreatedAt,
	}, c)
}

func (s *Store) GetRCACase(ctx context.Context, rcaID string) (models.RCACase, error) {
	var c models.RCACase
	err := s.getDocument(ctx, TableRCACases, "id", rcaID, &c)
	return c, err
}

// GetRCACaseByCaseID returns the most recent RCA case raised for caseID,
// used by the manufacturing stage to recover the root cause from a
// case_id handed down through feedback (spec.md §4.10).
func (s *Store) GetRCACaseByCaseID(ctx context.Context, caseID string) (models.RCACase, error) {
	query := fmt.Sprintf(
		`SELECT payload FROM %s WHERE case_id = $1 ORDER BY created_at DESC LIMIT 1`,
		TableRCACases,
	)
	var body []byte
	if err := s.DB.QueryRowxContext(ctx, query, caseID).Scan(&body); err != nil {
		if isNoRows(err) {
			return models.RCACase{}, ErrNotFound
		}
		return models.RCACase{}, fmt.Errorf("get rca case by case id: %w", err)
	}
	var c models.RCACase
	if err := unmarshalJSON(body, &c); err != nil {
		return models.RCACase{}, err
	}
	return c, nil
}

func (s *Store) AdvanceRCAStatus(ctx context.Context, rcaID, status string) error {
	return s.updateStatus(ctx, TableRCACases, "id", rcaID, status)
}

func RCAAdvancedBeyondScheduling(status string) bool {
	switch status {
	case models.RCAStatusScheduled, models.RCAStatusEngaged, models.RCAStatusCompleted:
		return true
	default:
		return false
	}
}
