package models

import (
	"time"

	"salontime/internal/availability"
)

// Booking is the authoritative record of occupied time. Date is a calendar day
// in the salon's local time (DateLayout); StartTime and EndTime are HH:MM.
type Booking struct {
	ID             string     `json:"id"`
	SalonID        string     `json:"salon_id"`
	ServiceID      string     `json:"service_id"`
	ServiceName    string     `json:"service_name"`
	ClientID       string     `json:"client_id"`
	StaffID        string     `json:"staff_id,omitempty"`
	Date           string     `json:"booking_date"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	TotalAmount    int64      `json:"total_amount"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int64      `json:"version"`
}

// Range is the booking's interval in the shape the availability engine reads.
func (b *Booking) Range() availability.TimeRange {
	return availability.TimeRange{StartTime: b.StartTime, EndTime: b.EndTime}
}

// Occupies reports whether the booking blocks its interval.
func (b *Booking) Occupies() bool {
	return b.Status != StatusCancelled
}

// CompetesWith reports whether this booking and one for staffID contend for the
// same time: either side unassigned, or both assigned to the same person.
func (b *Booking) CompetesWith(staffID string) bool {
	return SameStaffScope(b.StaffID, staffID)
}

// SameStaffScope is the staff-scope rule shared by queries and rechecks.
func SameStaffScope(a, b string) bool {
	return a == "" || b == "" || a == b
}

// StartsAt resolves the booking start in loc. ok is false if Date or StartTime
// is malformed.
func (b *Booking) StartsAt(loc *time.Location) (t time.Time, ok bool) {
	day, err := time.ParseInLocation(DateLayout, b.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	m, err := availability.TimeToMinutes(b.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	return day.Add(time.Duration(m) * time.Minute), true
}

// CanTransition reports whether status may move from one value to another.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var allowedTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}
