package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salontime/internal/availability"
	"salontime/internal/models"
)

const bookingColumns = `id, salon_id, service_id, service_name, client_id, staff_id, booking_date,
        start_time, end_time, status, notes, total_amount, reminder_sent_at, created_at, updated_at, version`

// staffScope matches bookings that compete with a request for staff ?:
// an unassigned request sees every booking, an assigned one sees its own staff
// plus unassigned bookings.
const staffScope = `(? = '' OR staff_id = '' OR staff_id = ?)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b        models.Booking
		reminder sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.SalonID, &b.ServiceID, &b.ServiceName, &b.ClientID, &b.StaffID, &b.Date,
		&b.StartTime, &b.EndTime, &b.Status, &b.Notes, &b.TotalAmount, &reminder,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if reminder.Valid {
		at := reminder.Time
		b.ReminderSentAt = &at
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func listOccupied(ctx context.Context, q querier, salonID, date, staffID string) ([]availability.TimeRange, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT start_time, end_time FROM bookings
        WHERE salon_id = ? AND booking_date = ? AND status != ?
        AND `+staffScope+`
        ORDER BY start_time`,
		salonID, date, models.StatusCancelled, staffID, staffID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := []availability.TimeRange{}
	for rows.Next() {
		var r availability.TimeRange
		if err := rows.Scan(&r.StartTime, &r.EndTime); err != nil {
			return nil, err
		}
		occupied = append(occupied, r)
	}
	return occupied, rows.Err()
}

// ListOccupied returns the intervals held by non-cancelled bookings that
// compete with staffID on the given salon day.
func (db *DB) ListOccupied(ctx context.Context, salonID, date, staffID string) ([]availability.TimeRange, error) {
	occupied, err := listOccupied(ctx, db, salonID, date, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupied intervals: %w", err)
	}
	return occupied, nil
}

// CreateBookingWithLock re-reads the competing bookings and inserts the new one
// inside a single IMMEDIATE transaction. An overlap found at this point is
// reported as ErrSlotTaken.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	occupied, err := listOccupied(ctx, tx, booking.SalonID, booking.Date, booking.StaffID)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	conflict, err := db.engine.HasConflict(booking.StartTime, booking.EndTime, occupied)
	if err != nil {
		return err
	}
	if conflict {
		return ErrSlotTaken
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO bookings (
            id, salon_id, service_id, service_name, client_id, staff_id, booking_date,
            start_time, end_time, status, notes, total_amount, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		booking.ID, booking.SalonID, booking.ServiceID, booking.ServiceName, booking.ClientID,
		booking.StaffID, booking.Date, booking.StartTime, booking.EndTime, booking.Status,
		booking.Notes, booking.TotalAmount, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// UpdateBookingStatusWithVersion applies status only if the stored version
// still equals fromVersion.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ListBookingsByDate returns every booking of the salon day, cancelled ones
// included, ordered by start time.
func (db *DB) ListBookingsByDate(ctx context.Context, salonID, date string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings
        WHERE salon_id = ? AND booking_date = ?
        ORDER BY start_time, created_at`, salonID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return scanBookings(rows)
}

// ListBookingsInRange returns bookings with from <= date <= to.
func (db *DB) ListBookingsInRange(ctx context.Context, salonID, from, to string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings
        WHERE salon_id = ? AND booking_date >= ? AND booking_date <= ?
        ORDER BY booking_date, start_time`, salonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings in range: %w", err)
	}
	return scanBookings(rows)
}

// ListDueReminders returns pending or confirmed bookings without a reminder
// whose start, in the salon's time zone, falls within (now, now+lead].
func (db *DB) ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]*models.Booking, error) {
	// widen the date window by a day on each side to cover every time zone
	from := now.UTC().AddDate(0, 0, -1).Format(models.DateLayout)
	to := now.UTC().Add(lead).AddDate(0, 0, 1).Format(models.DateLayout)

	rows, err := db.QueryContext(ctx, `
        SELECT b.id, b.salon_id, b.service_id, b.service_name, b.client_id, b.staff_id, b.booking_date,
            b.start_time, b.end_time, b.status, b.notes, b.total_amount, b.reminder_sent_at,
            b.created_at, b.updated_at, b.version, s.timezone
        FROM bookings b JOIN salons s ON s.id = b.salon_id
        WHERE b.status IN (?, ?) AND b.reminder_sent_at IS NULL
        AND b.booking_date >= ? AND b.booking_date <= ?
        ORDER BY b.booking_date, b.start_time`,
		models.StatusPending, models.StatusConfirmed, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	deadline := now.Add(lead)
	var due []*models.Booking
	for rows.Next() {
		var (
			b        models.Booking
			reminder sql.NullTime
			timezone string
		)
		if err := rows.Scan(
			&b.ID, &b.SalonID, &b.ServiceID, &b.ServiceName, &b.ClientID, &b.StaffID, &b.Date,
			&b.StartTime, &b.EndTime, &b.Status, &b.Notes, &b.TotalAmount, &reminder,
			&b.CreatedAt, &b.UpdatedAt, &b.Version, &timezone,
		); err != nil {
			return nil, err
		}
		salon := models.Salon{Timezone: timezone}
		start, ok := b.StartsAt(salon.Location())
		if !ok || !start.After(now) || start.After(deadline) {
			continue
		}
		due = append(due, &b)
	}
	return due, rows.Err()
}

func (db *DB) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return rowsAffected(result)
}
