package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"salontime/internal/models"
)

const waitlistColumns = `id, salon_id, service_id, client_id, staff_id, preferred_date, status, notified_at, expires_at, created_at`

func scanWaitlistEntry(row rowScanner) (*models.WaitlistEntry, error) {
	var (
		entry      models.WaitlistEntry
		notifiedAt sql.NullTime
		expiresAt  sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.SalonID, &entry.ServiceID, &entry.ClientID, &entry.StaffID, &entry.Date,
		&entry.Status, &notifiedAt, &expiresAt, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if notifiedAt.Valid {
		at := notifiedAt.Time
		entry.NotifiedAt = &at
	}
	if expiresAt.Valid {
		at := expiresAt.Time
		entry.ExpiresAt = &at
	}
	return &entry, nil
}

func scanWaitlist(rows *sql.Rows) ([]*models.WaitlistEntry, error) {
	defer rows.Close()
	entries := []*models.WaitlistEntry{}
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CreateWaitlistEntry adds a waiting entry. A client may hold only one waiting
// entry per salon, service and day; a second one fails with ErrAlreadyOnWaitlist.
func (db *DB) CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing string
	err = tx.QueryRowContext(ctx, `
        SELECT id FROM waitlist
        WHERE client_id = ? AND salon_id = ? AND service_id = ? AND preferred_date = ? AND status = ?
        LIMIT 1`,
		entry.ClientID, entry.SalonID, entry.ServiceID, entry.Date, models.WaitlistWaiting,
	).Scan(&existing)
	switch {
	case err == nil:
		return ErrAlreadyOnWaitlist
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check waitlist: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = models.WaitlistWaiting
	entry.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO waitlist (id, salon_id, service_id, client_id, staff_id, preferred_date, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SalonID, entry.ServiceID, entry.ClientID, entry.StaffID, entry.Date,
		entry.Status, entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyOnWaitlist
	}
	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit waitlist entry: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (db *DB) GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist WHERE id = ?`, id)
	entry, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return entry, nil
}

// NextWaitingEntry returns the oldest waiting entry for the salon, service and
// day whose staff scope matches staffID.
func (db *DB) NextWaitingEntry(ctx context.Context, salonID, serviceID, date, staffID string) (*models.WaitlistEntry, error) {
	row := db.QueryRowContext(ctx, `
        SELECT `+waitlistColumns+`
        FROM waitlist
        WHERE salon_id = ? AND service_id = ? AND preferred_date = ? AND status = ?
        AND `+staffScope+`
        ORDER BY created_at, id
        LIMIT 1`,
		salonID, serviceID, date, models.WaitlistWaiting, staffID, staffID,
	)
	entry, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return entry, nil
}

// ListWaitlistByClient returns a client's entries, newest first.
func (db *DB) ListWaitlistByClient(ctx context.Context, clientID string) ([]*models.WaitlistEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist
        WHERE client_id = ?
        ORDER BY created_at DESC, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client waitlist: %w", err)
	}
	return scanWaitlist(rows)
}

// ListWaitlistBySalon returns a salon's entries in queue order. Empty status
// or date match everything.
func (db *DB) ListWaitlistBySalon(ctx context.Context, salonID, status, date string) ([]*models.WaitlistEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist
        WHERE salon_id = ? AND (? = '' OR status = ?) AND (? = '' OR preferred_date = ?)
        ORDER BY created_at, id`, salonID, status, status, date, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list salon waitlist: %w", err)
	}
	return scanWaitlist(rows)
}

// CancelWaitlistEntry withdraws a waiting or notified entry. Entries in any
// other state fail with ErrConcurrentModification.
func (db *DB) CancelWaitlistEntry(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `
        UPDATE waitlist SET status = ?
        WHERE id = ? AND status IN (?, ?)`,
		models.WaitlistCancelled, id, models.WaitlistWaiting, models.WaitlistNotified,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel waitlist entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// MarkWaitlistBooked closes the client's open entries for a day they just
// booked.
func (db *DB) MarkWaitlistBooked(ctx context.Context, clientID, salonID, serviceID, date string) (int64, error) {
	result, err := db.ExecContext(ctx, `
        UPDATE waitlist SET status = ?
        WHERE client_id = ? AND salon_id = ? AND service_id = ? AND preferred_date = ?
        AND status IN (?, ?)`,
		models.WaitlistBooked, clientID, salonID, serviceID, date, models.WaitlistWaiting, models.WaitlistNotified,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark waitlist booked: %w", err)
	}
	return result.RowsAffected()
}

// MarkWaitlistNotified moves a waiting entry to notified. It fails with
// ErrConcurrentModification when the entry is no longer waiting.
func (db *DB) MarkWaitlistNotified(ctx context.Context, id string, notifiedAt, expiresAt time.Time) error {
	result, err := db.ExecContext(ctx, `
        UPDATE waitlist SET status = ?, notified_at = ?, expires_at = ?
        WHERE id = ? AND status = ?`,
		models.WaitlistNotified, notifiedAt.UTC(), expiresAt.UTC(), id, models.WaitlistWaiting,
	)
	if err != nil {
		return fmt.Errorf("failed to mark waitlist entry notified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ExpireWaitlistEntries expires notified entries whose offer ran out before now.
func (db *DB) ExpireWaitlistEntries(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `
        UPDATE waitlist SET status = ?
        WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		models.WaitlistExpired, models.WaitlistNotified, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire waitlist entries: %w", err)
	}
	return result.RowsAffected()
}
