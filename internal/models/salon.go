package models

import (
	"time"

	"salontime/internal/hours"
)

type Salon struct {
	ID            string     `json:"id" yaml:"id"`
	OwnerID       string     `json:"owner_id" yaml:"owner_id"`
	Name          string     `json:"business_name" yaml:"name"`
	Timezone      string     `json:"timezone" yaml:"timezone"`
	BusinessHours hours.Week `json:"business_hours" yaml:"-"`
	CreatedAt     time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"-"`
}

// Location returns the salon's time zone, falling back to UTC when it is unset
// or unknown.
func (s *Salon) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Service struct {
	ID              string    `json:"id" yaml:"id"`
	SalonID         string    `json:"salon_id" yaml:"salon_id"`
	Name            string    `json:"name" yaml:"name"`
	DurationMinutes int       `json:"duration" yaml:"duration"`
	Price           int64     `json:"price" yaml:"price"`
	IsActive        bool      `json:"is_active" yaml:"is_active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
}
