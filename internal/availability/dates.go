package availability

import (
	"errors"
	"time"
)

// ErrNoAvailableDate is returned by NextAvailableDate when every date in
// its scan horizon is in the past, closed, or otherwise unavailable.
var ErrNoAvailableDate = errors.New("no available date within the scan horizon")

// nextDateHorizonDays bounds the forward scan for the next open date.
const nextDateHorizonDays = 60

func (e *Engine) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// IsDateAvailable reports whether date can take bookings at all: it must
// not be before today and the salon must be open on its weekday.
func (e *Engine) IsDateAvailable(date string, hours BusinessHours) bool {
	d, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return false
	}
	if d.Before(e.today()) {
		return false
	}
	_, open := hours.ForDate(d)
	return open
}

// DisabledDates returns every date in the inclusive range [start, end]
// that IsDateAvailable rejects, in ascending order. Useful for greying
// out a booking calendar.
func (e *Engine) DisabledDates(start, end string, hours BusinessHours) []string {
	from, err := time.ParseInLocation(dateLayout, start, time.Local)
	if err != nil {
		return nil
	}
	to, err := time.ParseInLocation(dateLayout, end, time.Local)
	if err != nil {
		return nil
	}

	var disabled []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		if !e.IsDateAvailable(date, hours) {
			disabled = append(disabled, date)
		}
	}
	return disabled
}

// NextAvailableDate scans forward from today for up to 60 days and
// returns the first bookable date. When the whole horizon is closed it
// returns ErrNoAvailableDate rather than guessing.
func (e *Engine) NextAvailableDate(hours BusinessHours) (string, error) {
	start := e.today()
	for i := 0; i < nextDateHorizonDays; i++ {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		if e.IsDateAvailable(date, hours) {
			return date, nil
		}
	}
	return "", ErrNoAvailableDate
}
