package domain

import (
	"context"
	"time"

	"salontime/internal/availability"
	"salontime/internal/hours"
	"salontime/internal/models"
)

type Repository interface {
	GetSalon(ctx context.Context, id string) (*models.Salon, error)
	UpdateBusinessHours(ctx context.Context, salonID string, week hours.Week) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListOccupied(ctx context.Context, salonID, date, staffID string) ([]availability.TimeRange, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	ListBookingsByDate(ctx context.Context, salonID, date string) ([]*models.Booking, error)
	ListBookingsInRange(ctx context.Context, salonID, from, to string) ([]*models.Booking, error)
	CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	NextWaitingEntry(ctx context.Context, salonID, serviceID, date, staffID string) (*models.WaitlistEntry, error)
	MarkWaitlistNotified(ctx context.Context, id string, notifiedAt, expiresAt time.Time) error
	MarkWaitlistBooked(ctx context.Context, clientID, salonID, serviceID, date string) (int64, error)
	GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	CancelWaitlistEntry(ctx context.Context, id string) error
	ListWaitlistByClient(ctx context.Context, clientID string) ([]*models.WaitlistEntry, error)
	ListWaitlistBySalon(ctx context.Context, salonID, status, date string) ([]*models.WaitlistEntry, error)
}

// ReminderStore is the slice of persistence the reminder worker needs.
type ReminderStore interface {
	ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]*models.Booking, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	ExpireWaitlistEntries(ctx context.Context, now time.Time) (int64, error)
}

// SlotEntry is a cached availability answer for one (salon, date, service, staff).
type SlotEntry struct {
	Closed bool                `json:"closed"`
	Slots  []availability.Slot `json:"slots"`
}

type SlotCache interface {
	// Get returns nil without error on a miss.
	Get(ctx context.Context, key string) (*SlotEntry, error)
	Set(ctx context.Context, key string, entry *SlotEntry) error
	// Generation returns a token that changes whenever InvalidatePrefix runs
	// for one of prefixes. Readers fetch it before reading storage and put it
	// in the key they Set, so an answer computed before an invalidation is
	// never served after it.
	Generation(ctx context.Context, prefixes ...string) (string, error)
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// DayLocker serializes booking writes for one (salon, staff, date) key.
type DayLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers client-facing messages. Delivery channels are external.
type Notifier interface {
	BookingReminder(ctx context.Context, booking *models.Booking) error
	WaitlistSlotOpened(ctx context.Context, entry *models.WaitlistEntry, freed *models.Booking) error
	BookingStatusChanged(ctx context.Context, booking *models.Booking, previous string) error
}
