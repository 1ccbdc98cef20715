package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned by repository Get methods when no row matches.
var ErrNotFound = errors.New("store: record not found")

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
