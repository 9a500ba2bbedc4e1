package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func apptAt(date string, clock string, durationMinutes int, status string) Appointment {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		panic(err)
	}
	m := TimeToMinutes(clock)
	return Appointment{
		ScheduledAt:     day.Add(time.Duration(m) * time.Minute),
		DurationMinutes: durationMinutes,
		Status:          status,
	}
}

func TestHasConflictTouchingIntervals(t *testing.T) {
	const date = "2026-03-02"
	booked := []Appointment{apptAt(date, "10:00", 60, "booked")}

	// A slot ending exactly when the booking starts does not conflict.
	assert.False(t, HasConflict("09:00", 60, booked, date))
	// A slot starting exactly when the booking ends does not conflict.
	assert.False(t, HasConflict("11:00", 60, booked, date))
	// Any real overlap does.
	assert.True(t, HasConflict("09:30", 60, booked, date))
	assert.True(t, HasConflict("10:00", 60, booked, date))
	assert.True(t, HasConflict("10:30", 60, booked, date))
}

func TestHasConflictIgnoresReleasedStatuses(t *testing.T) {
	const date = "2026-03-02"
	for _, status := range []string{StatusCancelled, StatusNoShow} {
		t.Run(status, func(t *testing.T) {
			appts := []Appointment{apptAt(date, "10:00", 60, status)}
			assert.False(t, HasConflict("10:00", 60, appts, date))
		})
	}
}

func TestHasConflictIgnoresOtherDates(t *testing.T) {
	appts := []Appointment{apptAt("2026-03-03", "10:00", 60, "booked")}
	assert.False(t, HasConflict("10:00", 60, appts, "2026-03-02"))
}
