package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const (
	WaitlistWaiting   = "waiting"
	WaitlistNotified  = "notified"
	WaitlistExpired   = "expired"
	WaitlistBooked    = "booked"
	WaitlistCancelled = "cancelled"
)

const (
	// DateLayout is the calendar-day format used in storage and on the wire.
	DateLayout = "2006-01-02"

	// DefaultTimezone applies when a salon has none configured.
	DefaultTimezone = "UTC"

	// DefaultMaxBookingDays bounds how far ahead a booking may be made.
	DefaultMaxBookingDays = 90
)

// IsValidStatus reports whether s is a known booking status.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}
