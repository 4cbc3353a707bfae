package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salontime/internal/hours"
	"salontime/internal/models"
)

// CreateSalon inserts a salon, assigning an id when none is set.
func (db *DB) CreateSalon(ctx context.Context, salon *models.Salon) error {
	if salon.ID == "" {
		salon.ID = uuid.NewString()
	}
	if salon.Timezone == "" {
		salon.Timezone = models.DefaultTimezone
	}
	hoursJSON, err := json.Marshal(salon.BusinessHours)
	if err != nil {
		return fmt.Errorf("failed to encode business hours: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
        INSERT INTO salons (id, owner_id, name, timezone, business_hours, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		salon.ID, salon.OwnerID, salon.Name, salon.Timezone, string(hoursJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create salon: %w", err)
	}
	salon.CreatedAt = now
	salon.UpdatedAt = now
	return nil
}

// GetSalon returns the salon with its business hours normalized.
func (db *DB) GetSalon(ctx context.Context, id string) (*models.Salon, error) {
	var (
		salon     models.Salon
		hoursJSON string
	)
	err := db.QueryRowContext(ctx, `
        SELECT id, owner_id, name, timezone, business_hours, created_at, updated_at
        FROM salons WHERE id = ?`, id,
	).Scan(&salon.ID, &salon.OwnerID, &salon.Name, &salon.Timezone, &hoursJSON, &salon.CreatedAt, &salon.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get salon: %w", err)
	}

	week, err := hours.Normalize([]byte(hoursJSON))
	if err != nil {
		// a stored document that no longer parses leaves the salon closed
		db.logger.Warn().Err(err).Str("salon_id", id).Msg("Stored business hours are invalid")
		week = hours.ClosedWeek()
	}
	salon.BusinessHours = week
	return &salon, nil
}

// UpdateBusinessHours replaces the salon's weekly schedule.
func (db *DB) UpdateBusinessHours(ctx context.Context, salonID string, week hours.Week) error {
	hoursJSON, err := json.Marshal(week)
	if err != nil {
		return fmt.Errorf("failed to encode business hours: %w", err)
	}
	result, err := db.ExecContext(ctx,
		`UPDATE salons SET business_hours = ?, updated_at = ? WHERE id = ?`,
		string(hoursJSON), time.Now().UTC(), salonID,
	)
	if err != nil {
		return fmt.Errorf("failed to update business hours: %w", err)
	}
	return rowsAffected(result)
}
