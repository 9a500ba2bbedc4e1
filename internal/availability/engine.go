package availability

import "time"

const dateLayout = "2006-01-02"

// Policy holds the scheduling knobs that used to be scattered constants:
// the cadence slots are generated on, and how much notice a same-day
// booking requires.
type Policy struct {
	SlotInterval time.Duration
	LeadTime     time.Duration
}

// DefaultPolicy returns the salon's standard 30-minute grid with a
// 30-minute same-day booking lead time.
func DefaultPolicy() Policy {
	return Policy{
		SlotInterval: 30 * time.Minute,
		LeadTime:     30 * time.Minute,
	}
}

// Slot is one candidate start time for a booking on a given date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Engine answers availability queries. It carries the scheduling policy
// and a clock so the "today" rules are deterministic under test.
type Engine struct {
	policy Policy
	now    func() time.Time
}

// New creates an engine using the wall clock. Zero policy fields fall
// back to the defaults.
func New(policy Policy) *Engine {
	return NewWithClock(policy, time.Now)
}

// NewWithClock creates an engine with an injected clock.
func NewWithClock(policy Policy, now func() time.Time) *Engine {
	def := DefaultPolicy()
	if policy.SlotInterval <= 0 {
		policy.SlotInterval = def.SlotInterval
	}
	if policy.LeadTime <= 0 {
		policy.LeadTime = def.LeadTime
	}
	return &Engine{policy: policy, now: now}
}

// SlotTimes generates candidate start times on the policy cadence over
// the half-open window [open, close). The closing time itself is never a
// slot, and an inverted or empty window yields nothing.
func (e *Engine) SlotTimes(open, close string) []string {
	openMin := TimeToMinutes(open)
	closeMin := TimeToMinutes(close)
	if openMin >= closeMin {
		return nil
	}

	step := int(e.policy.SlotInterval / time.Minute)
	var slots []string
	for m := openMin; m < closeMin; m += step {
		slots = append(slots, MinutesToTime(m))
	}
	return slots
}

// AvailableSlots computes the offerable slots for a service of the given
// duration on date. Closed days yield nothing. Slots whose service would
// run past closing are dropped, same-day slots inside the lead-time
// buffer are dropped, and the rest are marked available unless they
// overlap a blocking appointment.
func (e *Engine) AvailableSlots(date string, durationMinutes int, appts []Appointment, hours BusinessHours) []Slot {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return nil
	}
	window, open := hours.ForDate(day)
	if !open {
		return nil
	}

	closeMin := TimeToMinutes(window.Close)
	var candidates []string
	for _, t := range e.SlotTimes(window.Open, window.Close) {
		if TimeToMinutes(t)+durationMinutes > closeMin {
			continue
		}
		candidates = append(candidates, t)
	}
	candidates = e.FilterPastSlots(candidates, date)

	slots := make([]Slot, 0, len(candidates))
	for _, t := range candidates {
		slots = append(slots, Slot{
			Time:      t,
			Available: !HasConflict(t, durationMinutes, appts, date),
		})
	}
	return slots
}

// FilterPastSlots removes slots a customer can no longer book today: any
// slot starting at or before now plus the lead-time buffer. Dates other
// than today pass through unchanged.
func (e *Engine) FilterPastSlots(slots []string, date string) []string {
	now := e.now()
	if now.Format(dateLayout) != date {
		return slots
	}

	cutoff := now.Add(e.policy.LeadTime)
	if cutoff.Format(dateLayout) != date {
		// The buffer crosses midnight; nothing left of today is bookable.
		return nil
	}
	cutoffMin := cutoff.Hour()*60 + cutoff.Minute()

	var out []string
	for _, t := range slots {
		if TimeToMinutes(t) > cutoffMin {
			out = append(out, t)
		}
	}
	return out
}
