package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salontime/internal/availability"
	"salontime/internal/config"
	"salontime/internal/database"
	"salontime/internal/domain"
	"salontime/internal/events"
	"salontime/internal/hours"
	"salontime/internal/models"
	"salontime/internal/repository"
)

const (
	monday  = "2026-03-09"
	tuesday = "2026-03-10"
	sunday  = "2026-03-15"
	owner   = "owner-1"
	client  = "client-1"
)

var testNow = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	reminders []string
	waitlist  []string
	changes   []string
}

func (n *recordingNotifier) BookingReminder(_ context.Context, b *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, b.ID)
	return nil
}

func (n *recordingNotifier) WaitlistSlotOpened(_ context.Context, e *models.WaitlistEntry, _ *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waitlist = append(n.waitlist, e.ID)
	return nil
}

func (n *recordingNotifier) BookingStatusChanged(_ context.Context, b *models.Booking, previous string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, previous+"->"+b.Status)
	return nil
}

type fixture struct {
	db       *database.DB
	bookings *BookingService
	salons   *SalonService
	salon    *models.Salon
	service  *models.Service
	notifier *recordingNotifier

	mu     sync.Mutex
	events []string
}

func (f *fixture) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newFixture(t *testing.T, cfg config.BookingConfig) *fixture {
	return newFixtureWithCache(t, cfg, repository.NewMemorySlotCache(time.Minute))
}

func newFixtureWithCache(t *testing.T, cfg config.BookingConfig, cache domain.SlotCache) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	week, err := hours.Normalize([]byte(`{
		"monday": "06:00-12:00",
		"tuesday": "09:00-12:00",
		"wednesday": {"open": "09:00", "close": "17:00"},
		"sunday": "Closed"
	}`))
	require.NoError(t, err)

	salon := &models.Salon{OwnerID: owner, Name: "Studio", BusinessHours: week}
	require.NoError(t, db.CreateSalon(ctx, salon))
	svc := &models.Service{SalonID: salon.ID, Name: "Haircut", DurationMinutes: 60, Price: 3500, IsActive: true}
	require.NoError(t, db.CreateService(ctx, svc))

	f := &fixture{db: db, salon: salon, service: svc, notifier: &recordingNotifier{}}

	bus := events.NewEventBus()
	bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e.Type)
		return nil
	})

	if cfg.GridMinutes == 0 {
		cfg.GridMinutes = 30
	}
	if cfg.MaxBookingDays == 0 {
		cfg.MaxBookingDays = 30
	}
	f.bookings = NewBookingService(db, cache, repository.NewMemoryDayLocker(time.Second), bus, f.notifier, cfg, 2*time.Hour, &logger)
	f.bookings.now = func() time.Time { return testNow }
	f.salons = NewSalonService(db, cache, &logger)
	return f
}

func newRedisCache(t *testing.T) domain.SlotCache {
	t.Helper()
	s := miniredis.RunT(t)
	client := repository.NewRedisClient(config.RedisConfig{Address: s.Addr()})
	t.Cleanup(func() { repository.Close(client) })
	return repository.NewRedisSlotCache(client, time.Minute)
}

func (f *fixture) book(t *testing.T, date, start, staff string) (*models.Booking, error) {
	t.Helper()
	return f.bookings.CreateBooking(context.Background(), CreateBookingRequest{
		ActorID:   client,
		SalonID:   f.salon.ID,
		ServiceID: f.service.ID,
		ClientID:  client,
		StaffID:   staff,
		Date:      date,
		StartTime: start,
	})
}

func (f *fixture) slots(t *testing.T, date, staff string) *SlotResult {
	t.Helper()
	res, err := f.bookings.GetAvailableSlots(context.Background(), SlotQuery{
		SalonID:   f.salon.ID,
		ServiceID: f.service.ID,
		Date:      date,
		StaffID:   staff,
	})
	require.NoError(t, err)
	return res
}

func starts(slots []availability.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime)
	}
	return out
}

func TestGetAvailableSlots(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	t.Run("OpenDay", func(t *testing.T) {
		res := f.slots(t, tuesday, "")
		assert.False(t, res.Closed)
		assert.Equal(t, tuesday, res.Date)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, starts(res.Slots))
		assert.Equal(t, "10:00", res.Slots[0].EndTime)
	})

	t.Run("ClosedDay", func(t *testing.T) {
		res := f.slots(t, sunday, "")
		assert.True(t, res.Closed)
		assert.NotNil(t, res.Slots)
		assert.Empty(t, res.Slots)
	})

	t.Run("MissingDayIsClosed", func(t *testing.T) {
		res := f.slots(t, "2026-03-12", "")
		assert.True(t, res.Closed)
	})

	t.Run("BookingInvalidatesCache", func(t *testing.T) {
		require.Len(t, f.slots(t, tuesday, "").Slots, 5)

		_, err := f.book(t, tuesday, "10:00", "")
		require.NoError(t, err)

		assert.Equal(t, []string{"09:00", "11:00"}, starts(f.slots(t, tuesday, "").Slots))
	})

	t.Run("BadInput", func(t *testing.T) {
		ctx := context.Background()
		_, err := f.bookings.GetAvailableSlots(ctx, SlotQuery{SalonID: f.salon.ID, ServiceID: f.service.ID, Date: "10/03/2026"})
		assert.True(t, availability.IsValidation(err))

		_, err = f.bookings.GetAvailableSlots(ctx, SlotQuery{SalonID: f.salon.ID, Date: tuesday})
		assert.True(t, availability.IsValidation(err))

		_, err = f.bookings.GetAvailableSlots(ctx, SlotQuery{SalonID: "other", ServiceID: f.service.ID, Date: tuesday})
		assert.ErrorIs(t, err, database.ErrNotFound)

		_, err = f.bookings.GetAvailableSlots(ctx, SlotQuery{SalonID: f.salon.ID, ServiceID: "missing", Date: tuesday})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestGetAvailableSlotsStaffScope(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	_, err := f.book(t, tuesday, "09:00", "anna")
	require.NoError(t, err)

	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, starts(f.slots(t, tuesday, "anna").Slots))
	assert.Len(t, f.slots(t, tuesday, "boris").Slots, 5)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, starts(f.slots(t, tuesday, "").Slots))
}

func TestGetAvailableSlotsHidesPast(t *testing.T) {
	f := newFixture(t, config.BookingConfig{HidePastSlots: true})

	res := f.slots(t, monday, "")
	assert.Equal(t, "08:00", res.Slots[0].StartTime)
	assert.Equal(t, "11:00", res.Slots[len(res.Slots)-1].StartTime)

	assert.Empty(t, f.slots(t, "2026-03-02", "").Slots)
	assert.Len(t, f.slots(t, tuesday, "").Slots, 5)

	f.bookings.cfg.HidePastSlots = false
	assert.Equal(t, "06:00", f.slots(t, monday, "").Slots[0].StartTime)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*domain.SlotEntry, error) {
	return nil, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, *domain.SlotEntry) error {
	return errors.New("cache down")
}

func (brokenCache) Generation(context.Context, ...string) (string, error) {
	return "", errors.New("cache down")
}

func (brokenCache) InvalidatePrefix(context.Context, string) error {
	return errors.New("cache down")
}

// racingRepo creates a booking right after the first ListOccupied read, the
// way a concurrent writer would between a reader's storage read and its
// cache write.
type racingRepo struct {
	*database.DB
	once   sync.Once
	during func()
}

func (r *racingRepo) ListOccupied(ctx context.Context, salonID, date, staffID string) ([]availability.TimeRange, error) {
	booked, err := r.DB.ListOccupied(ctx, salonID, date, staffID)
	r.once.Do(r.during)
	return booked, err
}

func TestSlotsComputedBeforeInvalidationAreNotServed(t *testing.T) {
	for name, cache := range map[string]domain.SlotCache{
		"Memory": repository.NewMemorySlotCache(time.Minute),
		"Redis":  newRedisCache(t),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixtureWithCache(t, config.BookingConfig{}, cache)
			repo := &racingRepo{DB: f.db}
			repo.during = func() {
				_, err := f.book(t, tuesday, "10:00", "")
				require.NoError(t, err)
			}
			f.bookings.repo = repo

			assert.Len(t, f.slots(t, tuesday, "").Slots, 5, "the racing read saw the day before the booking")
			assert.Equal(t, []string{"09:00", "11:00"}, starts(f.slots(t, tuesday, "").Slots))
		})
	}
}

func TestSlotsAndBookingSurviveCacheFailure(t *testing.T) {
	f := newFixtureWithCache(t, config.BookingConfig{}, brokenCache{})

	assert.Len(t, f.slots(t, tuesday, "").Slots, 5)
	_, err := f.book(t, tuesday, "09:00", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, starts(f.slots(t, tuesday, "").Slots))
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	b, err := f.book(t, tuesday, "9:30", "")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "09:30", b.StartTime)
	assert.Equal(t, "10:30", b.EndTime)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, int64(3500), b.TotalAmount)
	assert.Equal(t, "Haircut", b.ServiceName)
	assert.Equal(t, int64(1), b.Version)
	assert.Contains(t, f.published(), events.EventBookingCreated)

	t.Run("Overlap", func(t *testing.T) {
		_, err := f.book(t, tuesday, "10:00", "")
		assert.ErrorIs(t, err, database.ErrSlotTaken)
	})

	t.Run("Adjacent", func(t *testing.T) {
		_, err := f.book(t, tuesday, "10:30", "")
		assert.NoError(t, err)
	})

	t.Run("OutsideHours", func(t *testing.T) {
		_, err := f.book(t, tuesday, "11:30", "")
		assert.True(t, availability.IsValidation(err))
		_, err = f.book(t, tuesday, "08:00", "")
		assert.True(t, availability.IsValidation(err))
	})

	t.Run("ClosedDay", func(t *testing.T) {
		_, err := f.book(t, sunday, "10:00", "")
		assert.True(t, availability.IsValidation(err))
	})

	t.Run("BadTime", func(t *testing.T) {
		_, err := f.book(t, tuesday, "25:00", "")
		assert.True(t, availability.IsValidation(err))
	})

	t.Run("DateWindow", func(t *testing.T) {
		_, err := f.book(t, "2026-03-08", "10:00", "")
		assert.ErrorIs(t, err, ErrDateOutOfRange)

		_, err = f.book(t, "2026-04-20", "10:00", "")
		assert.ErrorIs(t, err, ErrDateOutOfRange)

		_, err = f.book(t, monday, "07:00", "")
		assert.ErrorIs(t, err, ErrDateOutOfRange)

		_, err = f.book(t, monday, "08:00", "")
		assert.NoError(t, err)
	})

	t.Run("MissingActor", func(t *testing.T) {
		_, err := f.bookings.CreateBooking(context.Background(), CreateBookingRequest{
			SalonID: f.salon.ID, ServiceID: f.service.ID, ClientID: client, Date: tuesday, StartTime: "09:00",
		})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestCreateBookingInactiveService(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	inactive := &models.Service{SalonID: f.salon.ID, Name: "Retired", DurationMinutes: 30}
	require.NoError(t, f.db.CreateService(context.Background(), inactive))

	_, err := f.bookings.CreateBooking(context.Background(), CreateBookingRequest{
		ActorID: client, SalonID: f.salon.ID, ServiceID: inactive.ID, Date: tuesday, StartTime: "09:00",
	})
	assert.ErrorIs(t, err, ErrServiceInactive)
}

func TestCreateBookingStaffScope(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	_, err := f.book(t, tuesday, "10:00", "anna")
	require.NoError(t, err)
	_, err = f.book(t, tuesday, "10:00", "boris")
	require.NoError(t, err)

	_, err = f.book(t, tuesday, "10:00", "anna")
	assert.ErrorIs(t, err, database.ErrSlotTaken)
	_, err = f.book(t, tuesday, "10:00", "")
	assert.ErrorIs(t, err, database.ErrSlotTaken)
}

func TestCreateBookingConcurrent(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, lost int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, tuesday, "10:00", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, database.ErrSlotTaken):
				lost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, lost)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerConfirms", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		b, err := f.book(t, tuesday, "09:00", "")
		require.NoError(t, err)

		updated, err := f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusConfirmed, Version: 1})
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, updated.Status)
		assert.Equal(t, int64(2), updated.Version)
		assert.Contains(t, f.published(), events.EventBookingStatusChanged)
		assert.Equal(t, []string{"pending->confirmed"}, f.notifier.changes)
	})

	t.Run("Permissions", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		b, err := f.book(t, tuesday, "09:00", "")
		require.NoError(t, err)

		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: client, Status: models.StatusConfirmed})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: "stranger", Status: models.StatusCancelled})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, Status: models.StatusCancelled})
		assert.ErrorIs(t, err, ErrUnauthenticated)

		updated, err := f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: client, Status: models.StatusCancelled})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, updated.Status)
	})

	t.Run("Transitions", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		b, err := f.book(t, tuesday, "09:00", "")
		require.NoError(t, err)

		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusPending})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: "archived"})
		assert.True(t, availability.IsValidation(err))

		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusCompleted})
		require.NoError(t, err)
		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusCancelled})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		b, err := f.book(t, tuesday, "09:00", "")
		require.NoError(t, err)

		_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusConfirmed, Version: 7})
		assert.ErrorIs(t, err, database.ErrConcurrentModification)
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		_, err := f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: "nope", ActorID: owner, Status: models.StatusConfirmed})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestCancelFreesSlotAndNotifiesWaitlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})

	b, err := f.book(t, tuesday, "10:00", "")
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "11:00"}, starts(f.slots(t, tuesday, "").Slots))

	entry, err := f.bookings.JoinWaitlist(ctx, JoinWaitlistRequest{
		ActorID: "client-2", SalonID: f.salon.ID, ServiceID: f.service.ID, Date: tuesday,
	})
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, entry.Status)

	_, err = f.bookings.UpdateStatus(ctx, UpdateStatusRequest{BookingID: b.ID, ActorID: owner, Status: models.StatusCancelled})
	require.NoError(t, err)

	assert.Len(t, f.slots(t, tuesday, "").Slots, 5)
	assert.Equal(t, []string{entry.ID}, f.notifier.waitlist)
	assert.Subset(t, f.published(), []string{events.EventBookingCancelled, events.EventWaitlistNotified})

	_, err = f.db.NextWaitingEntry(ctx, f.salon.ID, f.service.ID, tuesday, "")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestJoinWaitlistValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})

	_, err := f.bookings.JoinWaitlist(ctx, JoinWaitlistRequest{SalonID: f.salon.ID, ServiceID: f.service.ID, Date: tuesday})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.bookings.JoinWaitlist(ctx, JoinWaitlistRequest{ActorID: client, SalonID: f.salon.ID, ServiceID: f.service.ID, Date: "soon"})
	assert.True(t, availability.IsValidation(err))

	_, err = f.bookings.JoinWaitlist(ctx, JoinWaitlistRequest{ActorID: client, SalonID: "elsewhere", ServiceID: f.service.ID, Date: tuesday})
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.bookings.JoinWaitlist(ctx, JoinWaitlistRequest{ActorID: client, SalonID: f.salon.ID, ServiceID: f.service.ID, ClientID: "client-2", Date: tuesday})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})

	_, err := f.book(t, tuesday, "09:00", "")
	require.NoError(t, err)
	_, err = f.book(t, "2026-03-11", "09:00", "")
	require.NoError(t, err)

	day, err := f.bookings.ListBookingsByDate(ctx, f.salon.ID, owner, tuesday)
	require.NoError(t, err)
	assert.Len(t, day, 1)

	week, err := f.bookings.ListBookingsInRange(ctx, f.salon.ID, owner, monday, sunday)
	require.NoError(t, err)
	assert.Len(t, week, 2)

	_, err = f.bookings.ListBookingsInRange(ctx, f.salon.ID, owner, sunday, monday)
	assert.True(t, availability.IsValidation(err))

	_, err = f.bookings.ListBookingsInRange(ctx, f.salon.ID, owner, monday, "2026-12-31")
	assert.ErrorIs(t, err, ErrDateOutOfRange)

	_, err = f.bookings.ListBookingsByDate(ctx, f.salon.ID, owner, "")
	assert.True(t, availability.IsValidation(err))

	t.Run("OwnerOnly", func(t *testing.T) {
		for _, actor := range []string{client, "stranger"} {
			_, err := f.bookings.ListBookingsByDate(ctx, f.salon.ID, actor, tuesday)
			assert.ErrorIs(t, err, ErrForbidden)
			_, err = f.bookings.ListBookingsInRange(ctx, f.salon.ID, actor, monday, sunday)
			assert.ErrorIs(t, err, ErrForbidden)
		}
		_, err := f.bookings.ListBookingsByDate(ctx, f.salon.ID, "", tuesday)
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = f.bookings.ListBookingsByDate(ctx, "missing", owner, tuesday)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestCreateBookingOnBehalfOfClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})
	req := CreateBookingRequest{SalonID: f.salon.ID, ServiceID: f.service.ID, Date: tuesday, StartTime: "09:00"}

	t.Run("StrangerCannotBookForClient", func(t *testing.T) {
		r := req
		r.ActorID, r.ClientID = "stranger", client
		_, err := f.bookings.CreateBooking(ctx, r)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("ClientDefaultsToActor", func(t *testing.T) {
		r := req
		r.ActorID = "client-2"
		b, err := f.bookings.CreateBooking(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, "client-2", b.ClientID)
	})

	t.Run("OwnerBooksForClient", func(t *testing.T) {
		r := req
		r.ActorID, r.ClientID, r.StartTime = owner, client, "10:00"
		b, err := f.bookings.CreateBooking(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, client, b.ClientID)
	})
}

func TestGetBookingAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})
	b, err := f.book(t, tuesday, "09:00", "")
	require.NoError(t, err)

	for _, actor := range []string{client, owner} {
		got, err := f.bookings.GetBooking(ctx, b.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	}

	_, err = f.bookings.GetBooking(ctx, b.ID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.bookings.GetBooking(ctx, b.ID, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.bookings.GetBooking(ctx, "missing", owner)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestWaitlistLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BookingConfig{})
	join := JoinWaitlistRequest{ActorID: client, SalonID: f.salon.ID, ServiceID: f.service.ID, Date: tuesday}

	entry, err := f.bookings.JoinWaitlist(ctx, join)
	require.NoError(t, err)
	assert.Equal(t, client, entry.ClientID)

	_, err = f.bookings.JoinWaitlist(ctx, join)
	assert.ErrorIs(t, err, database.ErrAlreadyOnWaitlist)

	mine, err := f.bookings.ListMyWaitlist(ctx, client)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, entry.ID, mine[0].ID)

	t.Run("SalonQueueIsOwnerOnly", func(t *testing.T) {
		queue, err := f.bookings.ListSalonWaitlist(ctx, f.salon.ID, owner, models.WaitlistWaiting, tuesday)
		require.NoError(t, err)
		assert.Len(t, queue, 1)

		_, err = f.bookings.ListSalonWaitlist(ctx, f.salon.ID, client, "", "")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.bookings.ListSalonWaitlist(ctx, f.salon.ID, owner, "pending", "")
		assert.True(t, availability.IsValidation(err))
	})

	t.Run("Leave", func(t *testing.T) {
		_, err := f.bookings.LeaveWaitlist(ctx, entry.ID, "client-2")
		assert.ErrorIs(t, err, database.ErrNotFound)

		left, err := f.bookings.LeaveWaitlist(ctx, entry.ID, client)
		require.NoError(t, err)
		assert.Equal(t, models.WaitlistCancelled, left.Status)

		_, err = f.bookings.LeaveWaitlist(ctx, entry.ID, client)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = f.bookings.JoinWaitlist(ctx, join)
		require.NoError(t, err)
	})

	t.Run("BookingClosesEntry", func(t *testing.T) {
		_, err := f.book(t, tuesday, "09:00", "")
		require.NoError(t, err)

		mine, err := f.bookings.ListMyWaitlist(ctx, client)
		require.NoError(t, err)
		statuses := map[string]int{}
		for _, e := range mine {
			statuses[e.Status]++
		}
		assert.Equal(t, map[string]int{models.WaitlistCancelled: 1, models.WaitlistBooked: 1}, statuses)
	})
}
