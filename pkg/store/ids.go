package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a stage-prefixed opaque ID, e.g. "case_3fa2c1...".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
