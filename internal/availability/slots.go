package availability

import "strconv"

// DefaultGridMinutes is the step between candidate slot starts.
const DefaultGridMinutes = 30

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// TimeRange is an occupied interval as bookings store it.
type TimeRange struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slot is a computed bookable interval.
type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Overlaps reports whether two half-open intervals share at least one minute.
// Touching intervals ([09:00,10:00) and [10:00,11:00)) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// ConflictsWith returns true on the first booked interval overlapping candidate.
func ConflictsWith(candidate Interval, booked []Interval) bool {
	for _, b := range booked {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// ParseRange converts a TimeRange into minutes, rejecting empty or inverted ranges.
func ParseRange(r TimeRange) (Interval, error) {
	start, err := TimeToMinutes(r.StartTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := TimeToMinutes(r.EndTime)
	if err != nil {
		return Interval{}, err
	}
	if start >= end {
		return Interval{}, invalid("range", r.StartTime+"-"+r.EndTime, "start must be before end")
	}
	return Interval{Start: start, End: end}, nil
}

// ParseRanges converts every range, failing on the first malformed one.
func ParseRanges(ranges []TimeRange) ([]Interval, error) {
	out := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		iv, err := ParseRange(r)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

// Engine computes free slots on a fixed grid. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	grid int
}

// NewEngine builds an engine stepping candidate starts by gridMinutes.
// Non-positive values fall back to DefaultGridMinutes.
func NewEngine(gridMinutes int) *Engine {
	if gridMinutes <= 0 {
		gridMinutes = DefaultGridMinutes
	}
	return &Engine{grid: gridMinutes}
}

// Grid returns the configured step in minutes.
func (e *Engine) Grid() int {
	return e.grid
}

// ComputeAvailableSlots walks candidate starts from openTime in grid steps and
// returns, in ascending order, every slot of durationMinutes that ends no later
// than closeTime and overlaps none of the booked ranges.
func (e *Engine) ComputeAvailableSlots(openTime, closeTime string, durationMinutes int, booked []TimeRange) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, invalid("duration", strconv.Itoa(durationMinutes), "must be a positive number of minutes")
	}
	open, err := TimeToMinutes(openTime)
	if err != nil {
		return nil, err
	}
	closing, err := TimeToMinutes(closeTime)
	if err != nil {
		return nil, err
	}
	if open >= closing {
		return nil, invalid("business hours", openTime+"-"+closeTime, "opening must be before closing")
	}
	busy, err := ParseRanges(booked)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	for start := open; start+durationMinutes <= closing; start += e.grid {
		candidate := Interval{Start: start, End: start + durationMinutes}
		if ConflictsWith(candidate, busy) {
			continue
		}
		// closing < MinutesPerDay, so neither conversion can fail.
		from, _ := MinutesToTime(candidate.Start)
		to, _ := MinutesToTime(candidate.End)
		slots = append(slots, Slot{StartTime: from, EndTime: to})
	}
	return slots, nil
}

// HasConflict reports whether [candidateStart, candidateEnd) overlaps any
// booked range.
func (e *Engine) HasConflict(candidateStart, candidateEnd string, booked []TimeRange) (bool, error) {
	candidate, err := ParseRange(TimeRange{StartTime: candidateStart, EndTime: candidateEnd})
	if err != nil {
		return false, err
	}
	busy, err := ParseRanges(booked)
	if err != nil {
		return false, err
	}
	return ConflictsWith(candidate, busy), nil
}

// SlotsFrom drops slots starting before minStart. The input order is kept.
func SlotsFrom(slots []Slot, minStart int) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		m, err := TimeToMinutes(s.StartTime)
		if err != nil || m < minStart {
			continue
		}
		out = append(out, s)
	}
	return out
}
