package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"salontime/internal/availability"
	"salontime/internal/config"
	"salontime/internal/database"
	"salontime/internal/domain"
	"salontime/internal/events"
	"salontime/internal/metrics"
	"salontime/internal/models"
	"salontime/internal/repository"
)

// SlotQuery selects the service and day to compute free slots for. An empty
// StaffID means "any staff".
type SlotQuery struct {
	SalonID   string
	ServiceID string
	Date      string
	StaffID   string
}

type SlotResult struct {
	Date   string              `json:"date"`
	Closed bool                `json:"closed"`
	Slots  []availability.Slot `json:"slots"`
}

// CreateBookingRequest books on behalf of ActorID. ClientID defaults to the
// actor; only the salon owner may book for someone else.
type CreateBookingRequest struct {
	ActorID   string `json:"-"`
	SalonID   string `json:"salon_id"`
	ServiceID string `json:"service_id"`
	ClientID  string `json:"client_id"`
	StaffID   string `json:"staff_id"`
	Date      string `json:"booking_date"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
}

// UpdateStatusRequest moves a booking to Status. Version, when non-zero, must
// match the stored version.
type UpdateStatusRequest struct {
	BookingID string `json:"-"`
	ActorID   string `json:"-"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}

type JoinWaitlistRequest struct {
	ActorID   string `json:"-"`
	SalonID   string `json:"salon_id"`
	ServiceID string `json:"service_id"`
	ClientID  string `json:"client_id"`
	StaffID   string `json:"staff_id"`
	Date      string `json:"preferred_date"`
}

type BookingService struct {
	repo        domain.Repository
	cache       domain.SlotCache
	locker      domain.DayLocker
	eventBus    domain.EventPublisher
	notifier    domain.Notifier
	engine      *availability.Engine
	cfg         config.BookingConfig
	waitlistTTL time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	cache domain.SlotCache,
	locker domain.DayLocker,
	eventBus domain.EventPublisher,
	notifier domain.Notifier,
	cfg config.BookingConfig,
	waitlistTTL time.Duration,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		repo:        repo,
		cache:       cache,
		locker:      locker,
		eventBus:    eventBus,
		notifier:    notifier,
		engine:      availability.NewEngine(cfg.GridMinutes),
		cfg:         cfg,
		waitlistTTL: waitlistTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// GetAvailableSlots lists the free start times for a service on one day. The
// unfiltered list is cached; slots that already started today are dropped on
// the way out when HidePastSlots is set.
func (s *BookingService) GetAvailableSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	result, err := s.availableSlots(ctx, q)
	switch {
	case err != nil:
		metrics.IncSlotQuery(metrics.SlotResultError)
	case result.Closed:
		metrics.IncSlotQuery(metrics.SlotResultClosed)
	case len(result.Slots) == 0:
		metrics.IncSlotQuery(metrics.SlotResultFull)
	default:
		metrics.IncSlotQuery(metrics.SlotResultAvailable)
	}
	return result, err
}

func (s *BookingService) availableSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	if q.SalonID == "" {
		return nil, required("salon_id")
	}
	date, err := parseDate("date", q.Date)
	if err != nil {
		return nil, err
	}

	// The generation is read before any storage read, so an invalidation that
	// races this request moves later readers to a new key.
	gen, genErr := s.cache.Generation(ctx, repository.SalonPrefix(q.SalonID), repository.DayPrefix(q.SalonID, q.Date))
	if genErr != nil {
		s.logger.Warn().Err(genErr).Str("salon_id", q.SalonID).Msg("Slot cache generation unavailable")
	}
	key := repository.SlotKey(q.SalonID, q.Date, q.ServiceID, q.StaffID, gen)

	svc, err := s.bookableService(ctx, q.SalonID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	salon, err := s.repo.GetSalon(ctx, q.SalonID)
	if err != nil {
		return nil, err
	}

	var entry *domain.SlotEntry
	if genErr == nil {
		entry = s.cachedSlots(ctx, key)
	} else {
		metrics.ObserveSlotCache(false)
	}
	if entry == nil {
		day := salon.BusinessHours.Day(date.Weekday())
		entry = &domain.SlotEntry{Closed: day.Closed, Slots: []availability.Slot{}}
		if !day.Closed {
			booked, err := s.repo.ListOccupied(ctx, q.SalonID, q.Date, q.StaffID)
			if err != nil {
				return nil, err
			}
			entry.Slots, err = day.Slots(s.engine, svc.DurationMinutes, booked)
			if err != nil {
				return nil, err
			}
		}
		if genErr == nil {
			if err := s.cache.Set(ctx, key, entry); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache slots")
			}
		}
	}

	slots := entry.Slots
	if s.cfg.HidePastSlots {
		slots = s.hidePast(slots, q.Date, salon.Location())
	}
	return &SlotResult{Date: q.Date, Closed: entry.Closed, Slots: slots}, nil
}

func (s *BookingService) cachedSlots(ctx context.Context, key string) *domain.SlotEntry {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Slot cache read failed")
		metrics.ObserveSlotCache(false)
		return nil
	}
	metrics.ObserveSlotCache(entry != nil)
	return entry
}

func (s *BookingService) hidePast(slots []availability.Slot, date string, loc *time.Location) []availability.Slot {
	now := s.now().In(loc)
	today := now.Format(models.DateLayout)
	switch {
	case date < today:
		return []availability.Slot{}
	case date == today:
		return availability.SlotsFrom(slots, now.Hour()*60+now.Minute())
	}
	return slots
}

// CreateBooking books req.StartTime for the service's duration. A slot taken
// in the meantime is reported as database.ErrSlotTaken and is not retried.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if req.ActorID == "" {
		return nil, ErrUnauthenticated
	}
	if req.ClientID == "" {
		req.ClientID = req.ActorID
	}
	if req.SalonID == "" {
		return nil, required("salon_id")
	}
	date, err := parseDate("booking_date", req.Date)
	if err != nil {
		return nil, err
	}
	start, err := availability.TimeToMinutes(req.StartTime)
	if err != nil {
		return nil, err
	}

	svc, err := s.bookableService(ctx, req.SalonID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	salon, err := s.repo.GetSalon(ctx, req.SalonID)
	if err != nil {
		return nil, err
	}
	if req.ClientID != req.ActorID && req.ActorID != salon.OwnerID {
		return nil, ErrForbidden
	}
	if err := s.checkWindow(date, start, salon.Location()); err != nil {
		return nil, err
	}

	end := start + svc.DurationMinutes
	open, ok := salon.BusinessHours.Day(date.Weekday()).Interval()
	if !ok {
		return nil, &availability.ValidationError{Field: "booking_date", Value: req.Date, Reason: "salon is closed on this day"}
	}
	if start < open.Start || end > open.End {
		return nil, &availability.ValidationError{Field: "start_time", Value: req.StartTime, Reason: "booking must fit within business hours"}
	}
	startTime, _ := availability.MinutesToTime(start)
	endTime, _ := availability.MinutesToTime(end)

	unlock, err := s.locker.Lock(ctx, repository.LockKey(req.SalonID, req.StaffID, req.Date))
	switch {
	case err == nil:
		defer unlock()
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn().Err(err).Str("salon_id", req.SalonID).Str("date", req.Date).Msg("Proceeding without day lock")
	}

	booking := &models.Booking{
		SalonID:     req.SalonID,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		ClientID:    req.ClientID,
		StaffID:     req.StaffID,
		Date:        req.Date,
		StartTime:   startTime,
		EndTime:     endTime,
		Status:      models.StatusPending,
		Notes:       req.Notes,
		TotalAmount: svc.Price,
	}
	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingConflict()
			s.logger.Info().
				Str("salon_id", req.SalonID).
				Str("date", req.Date).
				Str("start_time", startTime).
				Msg("Booking rejected: slot taken")
		}
		return nil, err
	}
	metrics.IncBookingCreated()

	s.invalidateDay(ctx, booking.SalonID, booking.Date)
	if n, err := s.repo.MarkWaitlistBooked(ctx, booking.ClientID, booking.SalonID, booking.ServiceID, booking.Date); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("Failed to close waitlist entries")
	} else if n > 0 {
		s.logger.Info().Str("booking_id", booking.ID).Int64("entries", n).Msg("Waitlist entries booked")
	}
	s.publishEvent(events.EventBookingCreated, booking, "", req.ActorID)
	s.logger.Info().Str("booking_id", booking.ID).Str("salon_id", booking.SalonID).Msg("Booking created")
	return booking, nil
}

// checkWindow rejects days before today or after MaxBookingDays, and start
// times that already passed today, all in the salon's time zone.
func (s *BookingService) checkWindow(date time.Time, start int, loc *time.Location) error {
	now := s.now().In(loc)
	today, _ := time.ParseInLocation(models.DateLayout, now.Format(models.DateLayout), loc)
	day, _ := time.ParseInLocation(models.DateLayout, date.Format(models.DateLayout), loc)

	if day.Before(today) || day.After(today.AddDate(0, 0, s.cfg.MaxBookingDays)) {
		return ErrDateOutOfRange
	}
	if day.Equal(today) && start < now.Hour()*60+now.Minute() {
		return ErrDateOutOfRange
	}
	return nil
}

// UpdateStatus applies a status change on behalf of the salon owner or the
// booking's client. Clients may only cancel.
func (s *BookingService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*models.Booking, error) {
	if req.ActorID == "" {
		return nil, ErrUnauthenticated
	}
	if !models.IsValidStatus(req.Status) {
		return nil, &availability.ValidationError{Field: "status", Value: req.Status, Reason: "unknown status"}
	}
	booking, err := s.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	salon, err := s.repo.GetSalon(ctx, booking.SalonID)
	if err != nil {
		return nil, err
	}

	switch req.ActorID {
	case salon.OwnerID:
	case booking.ClientID:
		if req.Status != models.StatusCancelled {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if req.Version != 0 && req.Version != booking.Version {
		return nil, database.ErrConcurrentModification
	}
	if !models.CanTransition(booking.Status, req.Status) {
		return nil, ErrInvalidTransition
	}

	previous := booking.Status
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, req.Status); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, booking.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("Reload after status update failed")
		booking.Status = req.Status
		booking.Version++
		updated = booking
	}

	s.publishEvent(events.EventBookingStatusChanged, updated, previous, req.ActorID)
	if err := s.notifier.BookingStatusChanged(ctx, updated, previous); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", updated.ID).Msg("Status notification failed")
	}

	if updated.Status == models.StatusCancelled {
		s.publishEvent(events.EventBookingCancelled, updated, previous, req.ActorID)
		s.invalidateDay(ctx, updated.SalonID, updated.Date)
		s.offerFreedSlot(ctx, updated)
	}
	return updated, nil
}

// offerFreedSlot notifies the longest-waiting client for the cancelled
// booking's salon, service and day.
func (s *BookingService) offerFreedSlot(ctx context.Context, freed *models.Booking) {
	log := s.logger.With().Str("booking_id", freed.ID).Logger()

	entry, err := s.repo.NextWaitingEntry(ctx, freed.SalonID, freed.ServiceID, freed.Date, freed.StaffID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up waitlist")
		return
	}

	now := s.now()
	expires := now.Add(s.waitlistTTL)
	if err := s.repo.MarkWaitlistNotified(ctx, entry.ID, now, expires); err != nil {
		log.Warn().Err(err).Str("waitlist_id", entry.ID).Msg("Waitlist entry not notified")
		return
	}
	entry.Status = models.WaitlistNotified
	entry.NotifiedAt = &now
	entry.ExpiresAt = &expires

	if err := s.notifier.WaitlistSlotOpened(ctx, entry, freed); err != nil {
		log.Warn().Err(err).Str("waitlist_id", entry.ID).Msg("Waitlist notification failed")
	}
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventWaitlistNotified, events.WaitlistEventPayload{
		EntryID:    entry.ID,
		SalonID:    entry.SalonID,
		ServiceID:  entry.ServiceID,
		ClientID:   entry.ClientID,
		Date:       entry.Date,
		FreedStart: freed.StartTime,
		FreedEnd:   freed.EndTime,
		ExpiresAt:  expires,
	}); err != nil {
		log.Error().Err(err).Msg("publish event error")
	}
}

// GetBooking returns a booking to its client or the salon owner.
func (s *BookingService) GetBooking(ctx context.Context, id, actorID string) (*models.Booking, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID == booking.ClientID {
		return booking, nil
	}
	if _, err := s.ownedSalon(ctx, booking.SalonID, actorID); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListBookingsByDate lists a salon day for its owner.
func (s *BookingService) ListBookingsByDate(ctx context.Context, salonID, actorID, date string) ([]*models.Booking, error) {
	if _, err := parseDate("date", date); err != nil {
		return nil, err
	}
	if _, err := s.ownedSalon(ctx, salonID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByDate(ctx, salonID, date)
}

// ListBookingsInRange returns the owner's bookings between from and to
// inclusive. The span is capped at MaxBookingDays.
func (s *BookingService) ListBookingsInRange(ctx context.Context, salonID, actorID, from, to string) ([]*models.Booking, error) {
	start, err := parseDate("from", from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("to", to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &availability.ValidationError{Field: "to", Value: to, Reason: "must not be before from"}
	}
	if end.After(start.AddDate(0, 0, s.cfg.MaxBookingDays)) {
		return nil, ErrDateOutOfRange
	}
	if _, err := s.ownedSalon(ctx, salonID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListBookingsInRange(ctx, salonID, from, to)
}

// JoinWaitlist queues the client for a day. A client holds at most one
// waiting entry per salon, service and day.
func (s *BookingService) JoinWaitlist(ctx context.Context, req JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if req.ActorID == "" {
		return nil, ErrUnauthenticated
	}
	if req.ClientID == "" {
		req.ClientID = req.ActorID
	}
	if req.SalonID == "" {
		return nil, required("salon_id")
	}
	if _, err := parseDate("preferred_date", req.Date); err != nil {
		return nil, err
	}
	if _, err := s.bookableService(ctx, req.SalonID, req.ServiceID); err != nil {
		return nil, err
	}
	if req.ClientID != req.ActorID {
		if _, err := s.ownedSalon(ctx, req.SalonID, req.ActorID); err != nil {
			return nil, err
		}
	}

	entry := &models.WaitlistEntry{
		SalonID:   req.SalonID,
		ServiceID: req.ServiceID,
		ClientID:  req.ClientID,
		StaffID:   req.StaffID,
		Date:      req.Date,
	}
	if err := s.repo.CreateWaitlistEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info().Str("waitlist_id", entry.ID).Str("salon_id", entry.SalonID).Msg("Client joined waitlist")
	return entry, nil
}

// LeaveWaitlist withdraws the actor's own entry. Entries of other clients
// read as not found.
func (s *BookingService) LeaveWaitlist(ctx context.Context, entryID, actorID string) (*models.WaitlistEntry, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	entry, err := s.repo.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.ClientID != actorID {
		return nil, database.ErrNotFound
	}
	if err := s.repo.CancelWaitlistEntry(ctx, entry.ID); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	entry.Status = models.WaitlistCancelled
	return entry, nil
}

// ListMyWaitlist returns the actor's entries, newest first.
func (s *BookingService) ListMyWaitlist(ctx context.Context, actorID string) ([]*models.WaitlistEntry, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListWaitlistByClient(ctx, actorID)
}

// ListSalonWaitlist returns a salon's queue to its owner, optionally narrowed
// by status and day.
func (s *BookingService) ListSalonWaitlist(ctx context.Context, salonID, actorID, status, date string) ([]*models.WaitlistEntry, error) {
	if date != "" {
		if _, err := parseDate("date", date); err != nil {
			return nil, err
		}
	}
	if status != "" && !isWaitlistStatus(status) {
		return nil, &availability.ValidationError{Field: "status", Value: status, Reason: "unknown waitlist status"}
	}
	if _, err := s.ownedSalon(ctx, salonID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListWaitlistBySalon(ctx, salonID, status, date)
}

func isWaitlistStatus(status string) bool {
	switch status {
	case models.WaitlistWaiting, models.WaitlistNotified, models.WaitlistExpired,
		models.WaitlistBooked, models.WaitlistCancelled:
		return true
	}
	return false
}

// ownedSalon loads salonID and checks that actorID owns it.
func (s *BookingService) ownedSalon(ctx context.Context, salonID, actorID string) (*models.Salon, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	salon, err := s.repo.GetSalon(ctx, salonID)
	if err != nil {
		return nil, err
	}
	if salon.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return salon, nil
}

// bookableService loads an active service belonging to salonID.
func (s *BookingService) bookableService(ctx context.Context, salonID, serviceID string) (*models.Service, error) {
	if serviceID == "" {
		return nil, required("service_id")
	}
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.SalonID != salonID {
		return nil, database.ErrNotFound
	}
	if !svc.IsActive {
		return nil, ErrServiceInactive
	}
	return svc, nil
}

func (s *BookingService) invalidateDay(ctx context.Context, salonID, date string) {
	if err := s.cache.InvalidatePrefix(ctx, repository.DayPrefix(salonID, date)); err != nil {
		s.logger.Warn().Err(err).Str("salon_id", salonID).Str("date", date).Msg("Failed to invalidate slot cache")
	}
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, previous, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      b.ID,
		SalonID:        b.SalonID,
		ServiceID:      b.ServiceID,
		ClientID:       b.ClientID,
		StaffID:        b.StaffID,
		Date:           b.Date,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Status:         b.Status,
		PreviousStatus: previous,
		ChangedBy:      changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, required(field)
	}
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, &availability.ValidationError{Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func required(field string) error {
	return &availability.ValidationError{Field: field, Reason: "is required"}
}
