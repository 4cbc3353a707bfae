package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"salontime/internal/domain"
	"salontime/internal/events"
	"salontime/internal/metrics"
	"salontime/internal/models"
)

// ReminderWorker periodically reminds clients of upcoming appointments and
// expires waitlist offers nobody took up.
type ReminderWorker struct {
	store    domain.ReminderStore
	notifier domain.Notifier
	events   domain.EventPublisher
	retry    RetryPolicy
	interval time.Duration
	leadTime time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewReminderWorker(
	store domain.ReminderStore,
	notifier domain.Notifier,
	publisher domain.EventPublisher,
	retry RetryPolicy,
	interval, leadTime time.Duration,
	logger *zerolog.Logger,
) *ReminderWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReminderWorker{
		store:    store,
		notifier: notifier,
		events:   publisher,
		retry:    retry,
		interval: interval,
		leadTime: leadTime,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs a pass immediately and then on every interval until ctx is done.
func (w *ReminderWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Dur("lead_time", w.leadTime).Msg("Reminder worker started")
	defer w.logger.Info().Msg("Reminder worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single pass and returns how many reminders were sent.
func (w *ReminderWorker) RunOnce(ctx context.Context) int {
	now := w.now()

	if expired, err := w.store.ExpireWaitlistEntries(ctx, now); err != nil {
		w.logger.Error().Err(err).Msg("Failed to expire waitlist entries")
	} else if expired > 0 {
		w.logger.Info().Int64("count", expired).Msg("Expired waitlist offers")
	}

	due, err := w.store.ListDueReminders(ctx, now, w.leadTime)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list due reminders")
		return 0
	}

	sent := 0
	for _, booking := range due {
		if ctx.Err() != nil {
			break
		}
		if w.remind(ctx, booking, now) {
			sent++
		}
	}
	return sent
}

func (w *ReminderWorker) remind(ctx context.Context, booking *models.Booking, now time.Time) bool {
	log := w.logger.With().Str("booking_id", booking.ID).Logger()

	err := w.retry.Do(ctx, func(ctx context.Context) error {
		return w.notifier.BookingReminder(ctx, booking)
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to send booking reminder")
		return false
	}

	if err := w.store.MarkReminderSent(ctx, booking.ID, now); err != nil {
		log.Error().Err(err).Msg("Reminder sent but could not be recorded")
		return false
	}
	metrics.IncReminderSent()

	if err := w.events.PublishJSON(events.EventBookingReminder, events.BookingEventPayload{
		BookingID: booking.ID,
		SalonID:   booking.SalonID,
		ServiceID: booking.ServiceID,
		ClientID:  booking.ClientID,
		StaffID:   booking.StaffID,
		Date:      booking.Date,
		StartTime: booking.StartTime,
		EndTime:   booking.EndTime,
		Status:    booking.Status,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish reminder event")
	}
	return true
}
