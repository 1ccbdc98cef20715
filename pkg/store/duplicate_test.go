package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNoExistingRecord(t *testing.T) {
	result := Classify(nil, nil, 30*time.Second, time.Now())
	assert.Equal(t, DuplicateNone, result)
	assert.False(t, result.IsDuplicate())
}

func TestClassifyAdvancedStatus(t *testing.T) {
	now := time.Now()
	existing := &ExistingRecord{ID: "diagnosis_1", Status: "rca_complete", CreatedAt: now.Add(-time.Hour)}
	isAdvanced := func(status string) bool { return status == "rca_complete" }

	result := Classify(existing, isAdvanced, 30*time.Second, now)

	assert.Equal(t, DuplicateAdvanced, result)
	assert.True(t, result.IsDuplicate())
}

func TestClassifyRecentPending(t *testing.T) {
	now := time.Now()
	existing := &ExistingRecord{ID: "case_1", Status: "pending_diagnosis", CreatedAt: now.Add(-5 * time.Second)}

	result := Classify(existing, func(string) bool { return false }, 30*time.Second, now)

	assert.Equal(t, DuplicateRecentPending, result)
	assert.True(t, result.IsDuplicate())
}

func TestClassifyOldPendingIsNotADuplicate(t *testing.T) {
	now := time.Now()
	existing := &ExistingRecord{ID: "case_1", Status: "pending_diagnosis", CreatedAt: now.Add(-45 * time.Second)}

	result := Classify(existing, func(string) bool { return false }, 30*time.Second, now)

	assert.Equal(t, DuplicateOldPending, result)
	assert.False(t, result.IsDuplicate(), "a record older than the window is a genuine new occurrence, not a duplicate")
}

func TestDuplicateResultString(t *testing.T) {
	cases := map[DuplicateResult]string{
		DuplicateNone:           "none",
		DuplicateRecentPending:  "recent_pending",
		DuplicateOldPending:     "old_pending",
		DuplicateAdvanced:       "advanced",
	}
	for result, want := range cases {
		assert.Equal(t, want, result.String())
	}
}
