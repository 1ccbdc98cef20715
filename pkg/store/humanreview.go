package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// InsertHumanReview writes a review record keyed "<case_id>_<stage>"
// (spec.md §3). A conflict on the (case_id, agent_stage) pair is treated
// as an existing review and ignored, matching Firestore's idempotent
// document-set-by-key semantics in master_orchestrator.py.
func (s *Store) InsertHumanReview(ctx context.Context, r models.HumanReview) error {
	body, err := marshalJSON(r)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (review_id, case_id, agent_stage, review_status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_id, agent_stage) DO NOTHING
	`, TableHumanReviews)
	_, err = s.DB.ExecContext(ctx, query, r.ReviewID, r.CaseID, r.AgentStage, r.ReviewStatus, body, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert human review: %w", err)
	}
	return nil
}

// GetHumanReview reads the review for a case/stage pair, if any.
func (s *Store) GetHumanReview(ctx context.Context, caseID, agentStage string) (models.HumanReview, error) {
	query := fmt.Sprintf(
		`SELECT payload FROM %s WHERE case_id = $1 AND agent_stage = $2`,
		TableHumanReviews,
	)
	var body []byte
	err := s.DB.QueryRowxContext(ctx, query, caseID, agentStage).Scan(&body)
	if isNoRows(err) {
		return models.HumanReview{}, ErrNotFound
	}
	if err != nil {
		return models.HumanReview{}, fmt.Errorf("get human review: %w", err)
	}
	var r models.HumanReview
	if err := unmarshalJSON(body, &r); err != nil {
		return models.HumanReview{}, err
	}
	return r, nil
}
