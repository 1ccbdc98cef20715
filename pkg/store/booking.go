package store

import (
	"context"
	"fmt"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

func (s *Store) InsertBooking(ctx context.Context, b models.Booking) error {
	return s.insertDocument(ctx, TableBookings, map[string]any{
		"id":             b.BookingID,
		"case_id":        b.CaseID,
		"vehicle_id":     b.VehicleID,
		"service_center":  b.ServiceCenter,
		"scheduled_slot": b.ScheduledSlot,
		"status":         b.Status,
		"created_at":     b.CreatedAt,
	}, b)
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (models.Booking, error) {
	var b models.Booking
	err := s.getDocument(ctx, TableBookings, "id", bookingID, &b)
	return b, err
}

// AdvanceBookingStatus moves a booking to status, used by the feedback
// stage once post-service validation is recorded (spec.md §4.10).
func (s *Store) AdvanceBookingStatus(ctx context.Context, bookingID, status string) error {
	return s.updateStatus(ctx, TableBookings, "id", bookingID, status)
}

// OccupiedSlots returns every confirmed or pending booking slot at
// serviceCenter, used by the scheduling stage to subtract taken slots
// from the candidate set (spec.md §4.7).
func (s *Store) OccupiedSlots(ctx context.Context, serviceCenter string) (map[time.Time]bool, error) {
	query := fmt.Sprintf(
		`SELECT scheduled_slot FROM %s WHERE service_center = $1 AND status IN ('confirmed', 'pending')`,
		TableBookings,
	)
	rows, err := s.DB.QueryContext(ctx, query, serviceCenter)
	if err != nil {
		return nil, fmt.Errorf("occupied slots: %w", err)
	}
	defer rows.Close()

	occupied := make(map[time.Time]bool)
	for rows.Next() {
		var slot time.Time
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scan occupied slot: %w", err)
		}
		occupied[slot.UTC()] = true
	}
	return occupied, rows.Err()
}
