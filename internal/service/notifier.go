package service

import (
	"context"

	"github.com/rs/zerolog"

	"salontime/internal/models"
)

// LogNotifier records client notifications in the log. Message delivery is
// handled outside this service.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) BookingReminder(_ context.Context, b *models.Booking) error {
	n.logger.Info().
		Str("booking_id", b.ID).
		Str("client_id", b.ClientID).
		Str("date", b.Date).
		Str("start_time", b.StartTime).
		Msg("Booking reminder")
	return nil
}

func (n *LogNotifier) WaitlistSlotOpened(_ context.Context, entry *models.WaitlistEntry, freed *models.Booking) error {
	ev := n.logger.Info().
		Str("waitlist_id", entry.ID).
		Str("client_id", entry.ClientID).
		Str("date", entry.Date).
		Str("start_time", freed.StartTime).
		Str("end_time", freed.EndTime)
	if entry.ExpiresAt != nil {
		ev = ev.Time("expires_at", *entry.ExpiresAt)
	}
	ev.Msg("Waitlist slot opened")
	return nil
}

func (n *LogNotifier) BookingStatusChanged(_ context.Context, b *models.Booking, previous string) error {
	n.logger.Info().
		Str("booking_id", b.ID).
		Str("client_id", b.ClientID).
		Str("from", previous).
		Str("to", b.Status).
		Msg("Booking status changed")
	return nil
}
