// Package servicecenter expands a static registry of service centers
// and their weekly operating hours into hourly UTC candidate slots, and
// picks a best slot plus fallbacks against existing bookings — the Go
// equivalent of scheduling_agent's Firestore-backed availability lookup
// and generate_slots_from_operating_hours (spec.md §4.7).
package servicecenter

import (
	"context"
	"sort"
	"time"
)

// DayHours is one weekday's open/close hour (24h clock, center-local).
type DayHours struct {
	Start int
	End   int
}

// Center describes one service center's capacity and weekly schedule.
type Center struct {
	ID                     string
	Location               string
	TimeZone               string // IANA name, e.g. "America/Los_Angeles"
	Capacity               int
	OperatingHours         map[time.Weekday]DayHours
	SparePartsAvailability map[string]string // part -> "available"|"unavailable"|"in_transit"
}

// defaultHours is 9am-6pm, applied Monday-Friday to a Center whose
// OperatingHours is nil (original_source's default_hours). A Center
// with an OperatingHours map is closed on every weekday the map omits.
var defaultHours = DayHours{Start: 9, End: 18}

// Registry holds the fixed set of service centers known to the
// pipeline. Centers are tried in order for capacity overflow, mirroring
// original_source's service_centers_data[0]-then-fallback selection.
type Registry struct {
	centers []Center
}

// NewRegistry builds a Registry from a fixed center list, typically
// seeded from configuration at startup.
func NewRegistry(centers []Center) *Registry {
	return &Registry{centers: centers}
}

// Centers returns the registry's centers in priority order.
func (r *Registry) Centers() []Center {
	return r.centers
}

// hoursFor returns the operating hours for weekday d. When
// c.OperatingHours is nil it falls back to Monday-Friday 9-18 and
// weekends closed; days missing from a non-nil map are closed.
func hoursFor(c Center, d time.Weekday) (DayHours, bool) {
	if h, ok := c.OperatingHours[d]; ok {
		return h, true
	}
	if c.OperatingHours != nil {
		return DayHours{}, false
	}
	if d == time.Saturday || d == time.Sunday {
		return DayHours{}, false
	}
	return defaultHours, true
}

// generateSlots expands c's operating hours into hourly UTC slots for
// the next daysAhead days, starting tomorrow (original_source starts at
// day_offset=1).
func generateSlots(c Center, from time.Time, daysAhead int) []time.Time {
	loc := time.UTC
	if tz, err := time.LoadLocation(c.TimeZone); err == nil {
		loc = tz
	}

	var slots []time.Time
	for dayOffset := 1; dayOffset <= daysAhead; dayOffset++ {
		day := from.In(loc).AddDate(0, 0, dayOffset)
		hours, open := hoursFor(c, day.Weekday())
		if !open {
			continue
		}
		for hour := hours.Start; hour < hours.End; hour++ {
			local := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			slots = append(slots, local.UTC())
		}
	}
	return slots
}

// urgencyWindow returns the scheduling window (earliest, latest days
// from now) for a slot_type, per original_source's BEST SLOT SELECTION
// rules.
func urgencyWindow(slotType string) (minDays, maxDays int) {
	switch slotType {
	case "urgent":
		return 1, 3
	case "delayed":
		return 30, 60
	default: // "normal"
		return 7, 14
	}
}

// SlotTypeFor classifies estimated_rul_days into urgent/normal/delayed
// (original_source's SLOT TYPE CLASSIFICATION, verbatim bands).
func SlotTypeFor(estimatedRULDays int) string {
	switch {
	case estimatedRULDays < 7:
		return "urgent"
	case estimatedRULDays < 30:
		return "normal"
	default:
		return "delayed"
	}
}

// Selection is the outcome of a scheduling search: the chosen center,
// best slot, and at least two fallback alternatives (spec.md §4.7).
type Selection struct {
	ServiceCenter string
	BestSlot      time.Time
	SlotType      string
	FallbackSlots []time.Time
}

// minFallbacks is the contractual floor on alternative slots offered
// alongside best_slot.
const minFallbacks = 2

// Select walks the registry in priority order, generating candidate
// slots for each center and subtracting occupied ones (via occupiedFn),
// until a center yields a best slot plus minFallbacks alternatives.
// Candidates run from minDays-1 days out to maxDays+7 days out; maxDays
// itself is not enforced as an upper bound. Fallbacks are taken from
// within 7 days of the best slot where possible, otherwise from any
// later free slot. It falls back to the next
// center when the current one is at or over capacity or has too few
// free slots, bounding the search to len(centers) attempts.
func (r *Registry) Select(
	ctx context.Context,
	slotType string,
	now time.Time,
	occupiedFn func(ctx context.Context, serviceCenter string) (map[time.Time]bool, error),
) (Selection, bool, error) {
	minDays, maxDays := urgencyWindow(slotType)

	for _, c := range r.centers {
		occupied, err := occupiedFn(ctx, c.ID)
		if err != nil {
			return Selection{}, false, err
		}
		if len(occupied) >= c.Capacity {
			continue
		}

		candidates := generateSlots(c, now, maxDays+7)
		var free []time.Time
		for _, slot := range candidates {
			if occupied[slot] {
				continue
			}
			daysOut := slot.Sub(now).Hours() / 24
			if daysOut < float64(minDays-1) {
				continue
			}
			free = append(free, slot)
		}
		sort.Slice(free, func(i, j int) bool { return free[i].Before(free[j]) })

		if len(free) == 0 {
			continue
		}
		best := free[0]
		var fallback []time.Time
		for _, slot := range free[1:] {
			if slot.Sub(best) > 7*24*time.Hour {
				break
			}
			fallback = append(fallback, slot)
			if len(fallback) >= minFallbacks {
				break
			}
		}
		if len(fallback) < minFallbacks && len(free) > 1 {
			// Not enough same-week alternatives; take whatever is next
			// regardless of the 7-day window rather than fail outright.
			for _, slot := range free[1:] {
				if len(fallback) >= minFallbacks {
					break
				}
				already := false
				for _, f := range fallback {
					if f.Equal(slot) {
						already = true
						break
					}
				}
				if !already {
					fallback = append(fallback, slot)
				}
			}
		}
		if len(fallback) < minFallbacks {
			continue
		}

		return Selection{
			ServiceCenter: c.ID,
			BestSlot:      best,
			SlotType:      slotType,
			FallbackSlots: fallback,
		}, true, nil
	}

	return Selection{}, false, nil
}
