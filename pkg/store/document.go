package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// insertDocument inserts one row into table. cols carries every indexed
// column (including the primary key and, where present, created_at);
// payload is marshaled to JSON and stored in the "payload" column. Every
// collection table in ./migrations follows this shape.
func (s *Store) insertDocument(ctx context.Context, table string, cols map[string]any, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", table, err)
	}

	names := make([]string, 0, len(cols)+1)
	placeholders := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	i := 1
	for name, val := range cols {
		names = append(names, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, val)
		i++
	}
	names = append(names, "payload")
	placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	args = append(args, body)

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// marshalJSON is a thin wrapper used by repositories that need to
// re-serialize a record outside insertDocument (e.g. a full rewrite on
// update).
func marshalJSON(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return body, nil
}

// unmarshalJSON is a thin wrapper kept alongside insertDocument/getDocument
// so every payload (de)serialization path in this package goes through
// one place.
func unmarshalJSON(body []byte, dest any) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// getDocument loads the JSON payload for the row in table identified by
// idColumn=id and unmarshals it into dest.
func (s *Store) getDocument(ctx context.Context, table, idColumn, id string, dest any) error {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE %s = $1", table, idColumn)
	var body []byte
	if err := s.DB.QueryRowxContext(ctx, query, id).Scan(&body); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("get from %s: %w", table, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", table, err)
	}
	return nil
}

// updateStatus advances the indexed status column and rewrites the JSON
// payload's "status" field, keeping both representations in sync.
func (s *Store) updateStatus(ctx context.Context, table, idColumn, id, status string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET status = $1, payload = jsonb_set(payload, '{status}', to_jsonb($1::text)) WHERE %s = $2`,
		table, idColumn,
	)
	res, err := s.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update status in %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected in %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
