package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salontime/internal/models"
)

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
        INSERT INTO services (id, salon_id, name, duration_minutes, price, is_active, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.SalonID, svc.Name, svc.DurationMinutes, svc.Price, svc.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	svc.CreatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	err := db.QueryRowContext(ctx, `
        SELECT id, salon_id, name, duration_minutes, price, is_active, created_at
        FROM services WHERE id = ?`, id,
	).Scan(&svc.ID, &svc.SalonID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.IsActive, &svc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

// ListServices returns the active services of a salon ordered by name.
func (db *DB) ListServices(ctx context.Context, salonID string) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, salon_id, name, duration_minutes, price, is_active, created_at
        FROM services WHERE salon_id = ? AND is_active = 1
        ORDER BY name`, salonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.SalonID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, &svc)
	}
	return services, rows.Err()
}
