package availability

import (
	"sort"
	"time"
)

// Slot is one bookable instant at a restaurant: a time on the queried date
// plus the platform's seating label ("Standard", "Patio", "Bar", ...).
// Slots are constructed by adapter response parsers and never mutated.
type Slot struct {
	Time        time.Time
	SeatingType string
}

func (s Slot) Equal(o Slot) bool {
	return s.Time.Equal(o.Time) && s.SeatingType == o.SeatingType
}

func (s Slot) Before(o Slot) bool {
	return s.Time.Before(o.Time)
}

// Result is the outcome of one availability query. An empty Slots slice is a
// successful answer meaning "no open slots" and is distinct from an error.
type Result struct {
	Slots []Slot
}

// Sort orders slots ascending by time, stable so upstream ordering is kept
// among equal times.
func (r *Result) Sort() {
	sort.SliceStable(r.Slots, func(i, j int) bool {
		return r.Slots[i].Before(r.Slots[j])
	})
}

// SameDate reports whether t falls on the calendar date of day, ignoring the
// time-of-day component. Adapters use it to enforce that relative offsets
// resolved against an anchor never leak into neighboring dates.
func SameDate(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
