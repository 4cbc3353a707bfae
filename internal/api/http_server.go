package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salontime/internal/availability"
	"salontime/internal/config"
	"salontime/internal/database"
	"salontime/internal/export"
	"salontime/internal/models"
	"salontime/internal/service"
)

const maxBodyBytes = 64 << 10

const (
	codeValidation       = "VALIDATION_ERROR"
	codeNotFound         = "NOT_FOUND"
	codeSlotConflict     = "TIME_SLOT_CONFLICT"
	codeConcurrentUpdate = "CONCURRENT_MODIFICATION"
	codeTransition       = "INVALID_TRANSITION"
	codeOnWaitlist       = "ALREADY_ON_WAITLIST"
	codeForbidden        = "FORBIDDEN"
	codeUnauthorized     = "UNAUTHORIZED"
	codeRateLimited      = "RATE_LIMITED"
	codeUnavailable      = "SERVICE_UNAVAILABLE"
	codeInternal         = "INTERNAL_ERROR"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg        config.APIConfig
	exportsDir string
	health     Pinger
	bookings   *service.BookingService
	salons     *service.SalonService
	auth       *HTTPAuth
	logger     *zerolog.Logger
	server     *http.Server
}

func NewHTTPServer(
	cfg config.APIConfig,
	exportsDir string,
	health Pinger,
	bookings *service.BookingService,
	salons *service.SalonService,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:        cfg,
		exportsDir: exportsDir,
		health:     health,
		bookings:   bookings,
		salons:     salons,
		auth:       NewHTTPAuth(cfg),
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/v1/salons/{salonID}/business-hours", srv.handleGetBusinessHours)
	mux.HandleFunc("PUT /api/v1/salons/{salonID}/business-hours", srv.handleUpdateBusinessHours)
	mux.HandleFunc("GET /api/v1/salons/{salonID}/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/salons/{salonID}/bookings/export", srv.handleExportBookings)
	mux.HandleFunc("GET /api/v1/salons/{salonID}/waitlist", srv.handleSalonWaitlist)
	mux.HandleFunc("GET /api/v1/bookings/available-slots", srv.handleAvailableSlots)
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{bookingID}", srv.handleGetBooking)
	mux.HandleFunc("PATCH /api/v1/bookings/{bookingID}/status", srv.handleUpdateStatus)
	mux.HandleFunc("POST /api/v1/waitlist", srv.handleJoinWaitlist)
	mux.HandleFunc("GET /api/v1/waitlist", srv.handleMyWaitlist)
	mux.HandleFunc("DELETE /api/v1/waitlist/{entryID}", srv.handleLeaveWaitlist)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           requestMiddleware(logger, srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Health check failed")
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "database unavailable")
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleGetBusinessHours(w http.ResponseWriter, r *http.Request) {
	week, err := s.salons.GetBusinessHours(r.Context(), r.PathValue("salonID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, week)
}

func (s *HTTPServer) handleUpdateBusinessHours(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeServiceError(w, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err))
		return
	}
	week, err := s.salons.UpdateBusinessHours(r.Context(), r.PathValue("salonID"), s.auth.UserID(r), raw)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, week)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	bookings, err := s.bookings.ListBookingsByDate(r.Context(), r.PathValue("salonID"), s.auth.UserID(r), date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"date": date, "bookings": bookings})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	salonID := r.PathValue("salonID")
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	bookings, err := s.bookings.ListBookingsInRange(ctx, salonID, s.auth.UserID(r), from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	salon, err := s.salons.GetSalon(ctx, salonID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Both dates were validated by ListBookingsInRange.
	start, _ := time.Parse(models.DateLayout, from)
	end, _ := time.Parse(models.DateLayout, to)
	path, err := export.SaveSchedule(filepath.Join(s.exportsDir, salon.ID), salon.Name, bookings, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info().Str("salon_id", salonID).Str("file_path", path).Msg("Schedule exported")

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

func (s *HTTPServer) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.bookings.GetAvailableSlots(r.Context(), service.SlotQuery{
		SalonID:   strings.TrimSpace(q.Get("salon_id")),
		ServiceID: strings.TrimSpace(q.Get("service_id")),
		Date:      strings.TrimSpace(q.Get("date")),
		StaffID:   strings.TrimSpace(q.Get("staff_id")),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	req.ActorID = s.auth.UserID(r)

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("bookingID"), s.auth.UserID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	req.BookingID = r.PathValue("bookingID")
	req.ActorID = s.auth.UserID(r)

	booking, err := s.bookings.UpdateStatus(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req service.JoinWaitlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	req.ActorID = s.auth.UserID(r)

	entry, err := s.bookings.JoinWaitlist(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleMyWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.bookings.ListMyWaitlist(r.Context(), s.auth.UserID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) handleLeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	entry, err := s.bookings.LeaveWaitlist(r.Context(), r.PathValue("entryID"), s.auth.UserID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, entry)
}

func (s *HTTPServer) handleSalonWaitlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.bookings.ListSalonWaitlist(r.Context(), r.PathValue("salonID"), s.auth.UserID(r),
		strings.TrimSpace(q.Get("status")), strings.TrimSpace(q.Get("date")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case availability.IsValidation(err),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrDateOutOfRange),
		errors.Is(err, service.ErrServiceInactive):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, codeSlotConflict, err.Error())
	case errors.Is(err, database.ErrAlreadyOnWaitlist):
		writeError(w, http.StatusConflict, codeOnWaitlist, err.Error())
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, codeConcurrentUpdate, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeTransition, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, envelope{Error: &errorBody{Code: code, Message: message}})
}
