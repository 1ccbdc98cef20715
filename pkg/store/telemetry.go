package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// InsertTelemetryEvent persists an immutable telemetry sample.
func (s *Store) InsertTelemetryEvent(ctx context.Context, ev models.TelemetryEvent) error {
	return s.insertDocument(ctx, TableTelemetryEvents, map[string]any{
		"id":         ev.EventID,
		"vehicle_id": ev.VehicleID,
		"timestamp":  ev.Timestamp,
	}, ev)
}

// RecentTelemetryEvents returns the last limit events for vehicleID in
// chronological order, as required by the anomaly stage's detection
// window (spec.md §4.4).
func (s *Store) RecentTelemetryEvents(ctx context.Context, vehicleID string, limit int) ([]models.TelemetryEvent, error) {
	query := fmt.Sprintf(
		`SELECT payload FROM %s WHERE vehicle_id = $1 ORDER BY "timestamp" DESC LIMIT $2`,
		TableTelemetryEvents,
	)
	rows, err := s.DB.QueryContext(ctx, query, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent telemetry events: %w", err)
	}
	defer rows.Close()

	var events []models.TelemetryEvent
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		var ev models.TelemetryEvent
		if err := unmarshalJSON(body, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows arrived newest-first; the detection window wants chronological order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
