package availability

import (
	"strings"
	"time"
)

// DayHours describes the opening window for a single weekday.
// Open and Close are "HH:MM" strings and are ignored when IsOpen is false.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen bool   `json:"is_open"`
}

// BusinessHours maps lowercase weekday names ("sunday".."saturday") to
// that day's opening window. It is caller-supplied configuration; the
// engine never mutates it.
type BusinessHours map[string]DayHours

// ForDate returns the opening window for the weekday of t. The second
// return value is false when the salon is closed that day.
func (bh BusinessHours) ForDate(t time.Time) (DayHours, bool) {
	day, ok := bh[strings.ToLower(t.Weekday().String())]
	if !ok || !day.IsOpen {
		return DayHours{}, false
	}
	return day, true
}

// DefaultBusinessHours is the schedule used when the salon has not saved
// its own: weekdays 9-5, Saturday 10-4, closed Sunday.
func DefaultBusinessHours() BusinessHours {
	weekday := DayHours{Open: "09:00", Close: "17:00", IsOpen: true}
	return BusinessHours{
		"sunday":    {IsOpen: false},
		"monday":    weekday,
		"tuesday":   weekday,
		"wednesday": weekday,
		"thursday":  weekday,
		"friday":    weekday,
		"saturday":  {Open: "10:00", Close: "16:00", IsOpen: true},
	}
}
