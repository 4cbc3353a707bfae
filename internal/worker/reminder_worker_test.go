package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salontime/internal/events"
	"salontime/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]*models.Booking, error) {
	args := m.Called(ctx, now, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockStore) ExpireWaitlistEntries(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookingReminder(ctx context.Context, booking *models.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *mockNotifier) WaitlistSlotOpened(ctx context.Context, entry *models.WaitlistEntry, freed *models.Booking) error {
	return m.Called(ctx, entry, freed).Error(0)
}

func (m *mockNotifier) BookingStatusChanged(ctx context.Context, booking *models.Booking, previous string) error {
	return m.Called(ctx, booking, previous).Error(0)
}

func TestReminderWorkerRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	lead := 24 * time.Hour

	ok := &models.Booking{ID: "b1", SalonID: "s1", Date: "2026-03-10", StartTime: "10:00", EndTime: "11:00", Status: models.StatusConfirmed}
	flaky := &models.Booking{ID: "b2", SalonID: "s1", Date: "2026-03-10", StartTime: "12:00", EndTime: "13:00", Status: models.StatusPending}
	broken := &models.Booking{ID: "b3", SalonID: "s1", Date: "2026-03-10", StartTime: "14:00", EndTime: "15:00", Status: models.StatusPending}

	store := new(mockStore)
	store.On("ExpireWaitlistEntries", ctx, now).Return(int64(2), nil)
	store.On("ListDueReminders", ctx, now, lead).Return([]*models.Booking{ok, flaky, broken}, nil)
	store.On("MarkReminderSent", ctx, "b1", now).Return(nil)
	store.On("MarkReminderSent", ctx, "b2", now).Return(nil)

	notifier := new(mockNotifier)
	notifier.On("BookingReminder", mock.Anything, ok).Return(nil).Once()
	notifier.On("BookingReminder", mock.Anything, flaky).Return(errors.New("smtp down")).Once()
	notifier.On("BookingReminder", mock.Anything, flaky).Return(nil).Once()
	notifier.On("BookingReminder", mock.Anything, broken).Return(errors.New("no address")).Times(2)

	bus := events.NewEventBus()
	var reminded []string
	bus.Subscribe(events.EventBookingReminder, func(e *events.Event) error {
		reminded = append(reminded, e.ID)
		return nil
	})

	w := NewReminderWorker(store, notifier, bus, RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}, time.Minute, lead, nil)
	w.now = func() time.Time { return now }

	sent := w.RunOnce(ctx)
	assert.Equal(t, 2, sent)
	assert.Len(t, reminded, 2)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkReminderSent", ctx, "b3", now)
}

func TestReminderWorkerListError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	store := new(mockStore)
	store.On("ExpireWaitlistEntries", ctx, now).Return(int64(0), errors.New("locked"))
	store.On("ListDueReminders", ctx, now, time.Hour).Return(nil, errors.New("db gone"))

	w := NewReminderWorker(store, new(mockNotifier), events.NewEventBus(), RetryPolicy{}, time.Minute, time.Hour, nil)
	w.now = func() time.Time { return now }

	assert.Zero(t, w.RunOnce(ctx))
	store.AssertExpectations(t)
}

func TestReminderWorkerStartStops(t *testing.T) {
	store := new(mockStore)
	store.On("ExpireWaitlistEntries", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("ListDueReminders", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Booking{}, nil)

	w := NewReminderWorker(store, new(mockNotifier), events.NewEventBus(), RetryPolicy{}, 10*time.Millisecond, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.GreaterOrEqual(t, len(store.Calls), 2)
}
