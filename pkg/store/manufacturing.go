package store

import (
	"context"
	"fmt"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertManufacturingCase(ctx context.Context, c models.ManufacturingCase) error {
	return s.insertDocument(ctx, TableManufacturingCases, map[string]any{
		"id":          c.ManufacturingID,
		"feedback_id": c.FeedbackID,
		"case_id":     c.CaseID,
		"vehicle_id":  c.VehicleID,
		"status":      c.Status,
		"created_at":  c.CreatedAt,
	}, c)
}

func (s *Store) GetManufacturingCase(ctx context.Context, manufacturingID string) (models.ManufacturingCase, error) {
	var c models.ManufacturingCase
	err := s.getDocument(ctx, TableManufacturingCases, "id", manufacturingID, &c)
	return c, err
}

// RecurrenceCounts computes the three aggregate counts the manufacturing
// stage uses to size its recurrence cluster (spec.md §4.10): how many
// times this vehicle has raised this same anomalyType, how many
// fleet-wide cases share anomalyType, and how many fleet-wide diagnosis
// cases share component.
func (s *Store) RecurrenceCounts(ctx context.Context, vehicleID, anomalyType, component string) (vehicleCount, anomalyTypeCount, componentCount int, err error) {
	if err = s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE vehicle_id = $1 AND payload->>'anomaly_type' = $2`, TableAnomalyCases),
		vehicleID, anomalyType,
	).Scan(&vehicleCount); err != nil {
		return 0, 0, 0, fmt.Errorf("vehicle recurrence count: %w", err)
	}

	if err = s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE payload->>'anomaly_type' = $1`, TableAnomalyCases),
		anomalyType,
	).Scan(&anomalyTypeCount); err != nil {
		return 0, 0, 0, fmt.Errorf("anomaly type fleet count: %w", err)
	}

	if err = s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE payload->>'component' = $1`, TableDiagnosisCases),
		component,
	).Scan(&componentCount); err != nil {
		return 0, 0, 0, fmt.Errorf("component fleet count: %w", err)
	}

	return vehicleCount, anomalyTypeCount, componentCount, nil
}
