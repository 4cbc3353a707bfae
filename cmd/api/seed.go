package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"salontime/internal/database"
	"salontime/internal/hours"
	"salontime/internal/models"
)

// seedFile is the catalogue of salons and services loaded at start-up.
// Business hours accept every shape hours.Normalize does.
type seedFile struct {
	Salons []seedSalon `yaml:"salons"`
}

type seedSalon struct {
	models.Salon  `yaml:",inline"`
	BusinessHours interface{}      `yaml:"business_hours"`
	Services      []models.Service `yaml:"services"`
}

func loadSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	for i := range seed.Salons {
		s := &seed.Salons[i]
		if s.ID == "" {
			return nil, fmt.Errorf("seed salon #%d has no id", i+1)
		}
		raw, err := json.Marshal(jsonCompatible(s.BusinessHours))
		if err != nil {
			return nil, fmt.Errorf("salon %s business_hours: %w", s.ID, err)
		}
		week, err := hours.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("salon %s business_hours: %w", s.ID, err)
		}
		s.Salon.BusinessHours = week
		for j := range s.Services {
			svc := &s.Services[j]
			if svc.ID == "" {
				return nil, fmt.Errorf("salon %s service #%d has no id", s.ID, j+1)
			}
			if svc.DurationMinutes <= 0 {
				return nil, fmt.Errorf("service %s: duration must be positive", svc.ID)
			}
			svc.SalonID = s.ID
		}
	}
	return &seed, nil
}

// applySeed creates salons and services that do not exist yet. Existing rows
// are left untouched so edits made through the API survive restarts.
func applySeed(ctx context.Context, db *database.DB, seed *seedFile, logger *zerolog.Logger) error {
	for i := range seed.Salons {
		s := &seed.Salons[i]
		_, err := db.GetSalon(ctx, s.ID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			if err := db.CreateSalon(ctx, &s.Salon); err != nil {
				return err
			}
			logger.Info().Str("salon_id", s.ID).Msg("Seeded salon")
		case err != nil:
			return err
		}

		for j := range s.Services {
			svc := &s.Services[j]
			_, err := db.GetService(ctx, svc.ID)
			switch {
			case errors.Is(err, database.ErrNotFound):
				if err := db.CreateService(ctx, svc); err != nil {
					return err
				}
			case err != nil:
				return err
			}
		}
	}
	return nil
}

// jsonCompatible converts the map[interface{}]interface{} values yaml.v2
// produces into string-keyed maps.
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = jsonCompatible(t[i])
		}
		return t
	default:
		return v
	}
}
