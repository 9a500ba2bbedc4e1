package availability

import "time"

// Appointment is the minimal view of a booked appointment the engine
// needs for conflict checks. Callers map their storage model onto it.
type Appointment struct {
	ScheduledAt     time.Time
	DurationMinutes int
	Status          string
}

// Statuses that release their slot. Every other status blocks it.
const (
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

func blocksSlot(status string) bool {
	return status != StatusCancelled && status != StatusNoShow
}

// HasConflict reports whether a proposed slot [slotStart, slotStart+duration)
// on the given date overlaps any blocking appointment. Intervals are
// half-open, so a booking that ends exactly when another starts is not a
// conflict; back-to-back appointments are allowed.
func HasConflict(slotStart string, durationMinutes int, appts []Appointment, date string) bool {
	start := TimeToMinutes(slotStart)
	end := start + durationMinutes

	for _, a := range appts {
		if !blocksSlot(a.Status) {
			continue
		}
		if a.ScheduledAt.Format(dateLayout) != date {
			continue
		}
		busyStart := a.ScheduledAt.Hour()*60 + a.ScheduledAt.Minute()
		busyEnd := busyStart + a.DurationMinutes

		// [start,end) overlaps [busyStart,busyEnd) iff start < busyEnd && busyStart < end.
		if start < busyEnd && busyStart < end {
			return true
		}
	}
	return false
}
