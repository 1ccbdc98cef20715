package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// UpsertPipelineState writes the orchestrator's routing decision for a
// case, merging semantics matching the original's Firestore merge=True
// write (spec.md §4.11 step 4).
func (s *Store) UpsertPipelineState(ctx context.Context, st models.PipelineState) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (case_id, current_stage, next_stage, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (case_id) DO UPDATE SET
			current_stage = EXCLUDED.current_stage,
			next_stage    = EXCLUDED.next_stage,
			confidence    = EXCLUDED.confidence,
			updated_at    = EXCLUDED.updated_at
	`, TablePipelineStates)
	_, err := s.DB.ExecContext(ctx, query, st.CaseID, st.CurrentStage, st.NextStage, st.Confidence, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert pipeline state: %w", err)
	}
	return nil
}

// GetPipelineState reads a case's current routing state.
func (s *Store) GetPipelineState(ctx context.Context, caseID string) (models.PipelineState, error) {
	query := fmt.Sprintf(
		`SELECT case_id, current_stage, next_stage, confidence, updated_at FROM %s WHERE case_id = $1`,
		TablePipelineStates,
	)
	var st models.PipelineState
	err := s.DB.QueryRowxContext(ctx, query, caseID).Scan(
		&st.CaseID, &st.CurrentStage, &st.NextStage, &st.Confidence, &st.UpdatedAt,
	)
	if isNoRows(err) {
		return models.PipelineState{}, ErrNotFound
	}
	if err != nil {
		return models.PipelineState{}, fmt.Errorf("get pipeline state: %w", err)
	}
	return st, nil
}
