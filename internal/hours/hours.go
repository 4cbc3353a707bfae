// Package hours turns the business-hours shapes salons have accumulated over
// time into one canonical weekly schedule that the availability engine reads.
package hours

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"salontime/internal/availability"
)

// Day is the canonical per-weekday schedule. Opening and Closing are empty
// when Closed is set.
type Day struct {
	Closed  bool   `json:"closed"`
	Opening string `json:"opening,omitempty"`
	Closing string `json:"closing,omitempty"`
}

// Week is indexed by time.Weekday (Sunday == 0).
type Week [7]Day

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ClosedWeek has every day closed. It is also what an empty document normalizes to.
func ClosedWeek() Week {
	var w Week
	for i := range w {
		w[i] = Day{Closed: true}
	}
	return w
}

// Day returns the schedule for weekday.
func (w Week) Day(weekday time.Weekday) Day {
	if weekday < time.Sunday || weekday > time.Saturday {
		return Day{Closed: true}
	}
	return w[weekday]
}

// Set replaces the schedule for weekday after validating it.
func (w *Week) Set(weekday time.Weekday, d Day) error {
	if weekday < time.Sunday || weekday > time.Saturday {
		return &availability.ValidationError{Field: "weekday", Value: weekday.String(), Reason: "out of range"}
	}
	normalized, err := d.normalize(dayNames[weekday])
	if err != nil {
		return err
	}
	w[weekday] = normalized
	return nil
}

// Slots returns the free slots for this day. A closed day yields an empty list.
func (d Day) Slots(engine *availability.Engine, durationMinutes int, booked []availability.TimeRange) ([]availability.Slot, error) {
	if d.Closed {
		return []availability.Slot{}, nil
	}
	return engine.ComputeAvailableSlots(d.Opening, d.Closing, durationMinutes, booked)
}

// Interval returns the day's opening hours in minutes. ok is false for a closed day.
func (d Day) Interval() (iv availability.Interval, ok bool) {
	if d.Closed {
		return availability.Interval{}, false
	}
	parsed, err := availability.ParseRange(availability.TimeRange{StartTime: d.Opening, EndTime: d.Closing})
	if err != nil {
		return availability.Interval{}, false
	}
	return parsed, true
}

func (d Day) normalize(name string) (Day, error) {
	if d.Closed {
		return Day{Closed: true}, nil
	}
	opening, err := availability.NormalizeTime(d.Opening)
	if err != nil {
		return Day{}, fmt.Errorf("%s opening: %w", name, err)
	}
	closing, err := availability.NormalizeTime(d.Closing)
	if err != nil {
		return Day{}, fmt.Errorf("%s closing: %w", name, err)
	}
	if _, err := availability.ParseRange(availability.TimeRange{StartTime: opening, EndTime: closing}); err != nil {
		return Day{}, &availability.ValidationError{
			Field:  name,
			Value:  opening + "-" + closing,
			Reason: "opening must be before closing",
		}
	}
	return Day{Opening: opening, Closing: closing}, nil
}

// legacyDay covers every object shape stored historically:
// {open, close}, {opening, closing} and an optional closed flag that may be
// a boolean or the string "true".
type legacyDay struct {
	Open    string          `json:"open"`
	Close   string          `json:"close"`
	Opening string          `json:"opening"`
	Closing string          `json:"closing"`
	Closed  json.RawMessage `json:"closed"`
}

func (l legacyDay) closed() bool {
	switch strings.TrimSpace(string(l.Closed)) {
	case "true", `"true"`:
		return true
	}
	return false
}

// Normalize parses a business-hours document keyed by weekday name. Each value
// may be "09:00-18:00", "Closed", null, {open,close} or
// {opening,closing,closed}. Day names are case-insensitive and may appear
// once; days that are not mentioned are closed.
func Normalize(raw []byte) (Week, error) {
	week := ClosedWeek()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return week, nil
	}

	notObject := &availability.ValidationError{Field: "business hours", Reason: "expected an object keyed by weekday"}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return Week{}, notObject
	}

	seen := make(map[time.Weekday]string, 7)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Week{}, notObject
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Week{}, notObject
		}

		name := strings.ToLower(strings.TrimSpace(key))
		weekday, ok := weekdayByName(name)
		if !ok {
			return Week{}, &availability.ValidationError{Field: "day", Value: key, Reason: "unknown weekday"}
		}
		if prev, dup := seen[weekday]; dup {
			return Week{}, &availability.ValidationError{Field: "day", Value: key, Reason: fmt.Sprintf("same weekday as %q", prev)}
		}
		seen[weekday] = key

		day, err := parseDay(name, value)
		if err != nil {
			return Week{}, err
		}
		normalized, err := day.normalize(name)
		if err != nil {
			return Week{}, err
		}
		week[weekday] = normalized
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return Week{}, notObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return Week{}, notObject
	}
	return week, nil
}

func parseDay(name string, value json.RawMessage) (Day, error) {
	v := bytes.TrimSpace(value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return Day{Closed: true}, nil
	}

	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return Day{}, &availability.ValidationError{Field: name, Reason: "malformed string"}
		}
		return parseDayString(name, s)
	case '{':
		var l legacyDay
		if err := json.Unmarshal(v, &l); err != nil {
			return Day{}, &availability.ValidationError{Field: name, Reason: "malformed hours object"}
		}
		if l.closed() {
			return Day{Closed: true}, nil
		}
		opening := firstNonEmpty(l.Opening, l.Open)
		closing := firstNonEmpty(l.Closing, l.Close)
		if opening == "" || closing == "" {
			return Day{}, &availability.ValidationError{Field: name, Reason: "opening and closing are required"}
		}
		return Day{Opening: opening, Closing: closing}, nil
	}
	return Day{}, &availability.ValidationError{Field: name, Value: string(v), Reason: "unsupported hours format"}
}

func parseDayString(name, s string) (Day, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "closed") {
		return Day{Closed: true}, nil
	}
	open, closing, found := strings.Cut(s, "-")
	if !found {
		return Day{}, &availability.ValidationError{Field: name, Value: s, Reason: `expected "HH:MM-HH:MM" or "Closed"`}
	}
	return Day{Opening: strings.TrimSpace(open), Closing: strings.TrimSpace(closing)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func weekdayByName(name string) (time.Weekday, bool) {
	for i, n := range dayNames {
		if n == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// MarshalJSON writes all seven days in the canonical shape.
func (w Week) MarshalJSON() ([]byte, error) {
	out := make(map[string]Day, len(dayNames))
	for i, name := range dayNames {
		d := w[i]
		if d.Closed {
			d = Day{Closed: true}
		}
		out[name] = d
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any shape Normalize does.
func (w *Week) UnmarshalJSON(data []byte) error {
	parsed, err := Normalize(data)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
