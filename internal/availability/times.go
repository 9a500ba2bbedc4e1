// Package availability computes bookable time slots for a salon day from
// business hours, service duration, and existing appointments. It is pure:
// all inputs arrive as parameters and no state is kept between calls.
package availability

import "fmt"

// TimeToMinutes converts a "HH:MM" clock string to minutes since midnight.
func TimeToMinutes(t string) int {
	var h, m int
	_, _ = fmt.Sscanf(t, "%d:%d", &h, &m)
	return h*60 + m
}

// MinutesToTime is the inverse of TimeToMinutes for values in 0..1439.
func MinutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatTimeDisplay renders a "HH:MM" clock string in 12-hour form,
// e.g. "09:30" -> "9:30 AM", "00:00" -> "12:00 AM", "12:00" -> "12:00 PM".
func FormatTimeDisplay(t string) string {
	m := TimeToMinutes(t)
	h := m / 60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m%60, suffix)
}
