package store

import (
	"context"
	"fmt"
	"time"
)

// DuplicateResult is the outcome of a duplicate-suppression gate query
// (spec.md §4.3), expressed as a closed Go enum rather than an error or
// exception chain — the re-architecture the source's try/except chains
// called for.
type DuplicateResult int

const (
	// DuplicateNone means no existing record was found; proceed.
	DuplicateNone DuplicateResult = iota
	// DuplicateRecentPending means a pending record exists and is younger
	// than the suppression window — treat this delivery as a duplicate.
	DuplicateRecentPending
	// DuplicateOldPending means a pending record exists but has aged past
	// the suppression window — NOT a duplicate; it is a genuine new
	// occurrence and must be allowed through.
	DuplicateOldPending
	// DuplicateAdvanced means an existing record's status has already
	// moved past this stage — treat this delivery as a duplicate.
	DuplicateAdvanced
)

// IsDuplicate reports whether the gate should suppress this delivery.
func (r DuplicateResult) IsDuplicate() bool {
	return r == DuplicateRecentPending || r == DuplicateAdvanced
}

func (r DuplicateResult) String() string {
	switch r {
	case DuplicateNone:
		return "none"
	case DuplicateRecentPending:
		return "recent_pending"
	case DuplicateOldPending:
		return "old_pending"
	case DuplicateAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// ExistingRecord is the minimal projection needed to classify a
// duplicate-suppression gate.
type ExistingRecord struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// FindExisting looks up the most recent row in table whose keyColumn
// equals keyValue. It returns (nil, nil) when no row exists.
func (s *Store) FindExisting(ctx context.Context, table, keyColumn, keyValue string) (*ExistingRecord, error) {
	query := fmt.Sprintf(
		`SELECT id, status, created_at FROM %s WHERE %s = $1 ORDER BY created_at DESC LIMIT 1`,
		table, keyColumn,
	)
	var rec ExistingRecord
	err := s.DB.QueryRowxContext(ctx, query, keyValue).Scan(&rec.ID, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find existing in %s: %w", table, err)
	}
	return &rec, nil
}

// Classify turns an existing-record lookup into a DuplicateResult.
// isAdvanced reports whether status represents a stage further along
// than the one doing the gate check.
func Classify(existing *ExistingRecord, isAdvanced func(status string) bool, window time.Duration, now time.Time) DuplicateResult {
	if existing == nil {
		return DuplicateNone
	}
	if isAdvanced != nil && isAdvanced(existing.Status) {
		return DuplicateAdvanced
	}
	if now.Sub(existing.CreatedAt) < window {
		return DuplicateRecentPending
	}
	return DuplicateOldPending
}

// CheckDuplicate is the one-shot convenience combining FindExisting and
// Classify, used identically by Gate A, B, and C (spec.md §4.3 — the
// same query repeated at three points in the stage-worker skeleton).
func (s *Store) CheckDuplicate(ctx context.Context, table, keyColumn, keyValue string, isAdvanced func(status string) bool, window time.Duration) (DuplicateResult, *ExistingRecord, error) {
	existing, err := s.FindExisting(ctx, table, keyColumn, keyValue)
	if err != nil {
		return DuplicateNone, nil, err
	}
	return Classify(existing, isAdvanced, window, time.Now()), existing, nil
}
