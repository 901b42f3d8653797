package booking

import (
	"sort"
	"time"

	"booking-app/internal/domain/catalog"
)

const dateLayout = "2006-01-02"

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window is an occupied interval, usually an existing booking.
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseDay returns midnight of the calendar day in loc.
func ParseDay(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// DayOf is the calendar day of t as seen in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// SlotPlan is everything needed to lay out one service's day.
type SlotPlan struct {
	Day             time.Time // midnight in the tenant timezone
	Rules           []catalog.AvailabilityRule
	DurationMinutes int
	BufferMinutes   int
	Busy            []Window
	Now             time.Time
}

// GenerateSlots steps through each rule window by duration+buffer and drops
// slots that start in the past or collide with a busy window. A busy window
// blocks the buffer on both of its sides.
func GenerateSlots(p SlotPlan) []Slot {
	if p.DurationMinutes <= 0 {
		return nil
	}
	step := p.DurationMinutes + p.BufferMinutes
	buffer := time.Duration(p.BufferMinutes) * time.Minute
	y, m, d := p.Day.Date()
	loc := p.Day.Location()

	var out []Slot
	for _, r := range p.Rules {
		from, err := catalog.ParseClock(r.StartTime)
		if err != nil {
			continue
		}
		to, err := catalog.ParseClock(r.EndTime)
		if err != nil {
			continue
		}
		for off := from; off+p.DurationMinutes <= to; off += step {
			start := time.Date(y, m, d, 0, off, 0, 0, loc)
			end := time.Date(y, m, d, 0, off+p.DurationMinutes, 0, 0, loc)
			if start.Before(p.Now) {
				continue
			}
			if overlapsAny(start, end, buffer, p.Busy) {
				continue
			}
			out = append(out, Slot{Start: start, End: end})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return dedupe(out)
}

func overlapsAny(start, end time.Time, buffer time.Duration, busy []Window) bool {
	for _, w := range busy {
		if start.Before(w.End.Add(buffer)) && w.Start.Before(end.Add(buffer)) {
			return true
		}
	}
	return false
}

// overlapping rules can emit the same start twice
func dedupe(slots []Slot) []Slot {
	if len(slots) < 2 {
		return slots
	}
	out := slots[:1]
	for _, s := range slots[1:] {
		if !s.Start.Equal(out[len(out)-1].Start) {
			out = append(out, s)
		}
	}
	return out
}

// FindSlot returns the offered slot starting at start.
func FindSlot(slots []Slot, start time.Time) (Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}

// Remaining is how many more bookings the day can take; -1 means unlimited.
func Remaining(maxPerDay int, booked int64) int {
	if maxPerDay <= 0 {
		return -1
	}
	left := maxPerDay - int(booked)
	if left < 0 {
		return 0
	}
	return left
}
