package service

import (
	"context"

	"github.com/rs/zerolog"

	"salontime/internal/domain"
	"salontime/internal/hours"
	"salontime/internal/models"
	"salontime/internal/repository"
)

type SalonService struct {
	repo   domain.Repository
	cache  domain.SlotCache
	logger *zerolog.Logger
}

func NewSalonService(repo domain.Repository, cache domain.SlotCache, logger *zerolog.Logger) *SalonService {
	return &SalonService{repo: repo, cache: cache, logger: logger}
}

func (s *SalonService) GetBusinessHours(ctx context.Context, salonID string) (hours.Week, error) {
	salon, err := s.repo.GetSalon(ctx, salonID)
	if err != nil {
		return hours.Week{}, err
	}
	return salon.BusinessHours, nil
}

// UpdateBusinessHours normalizes raw, stores it and drops every cached slot
// list of the salon. Only the salon owner may change hours.
func (s *SalonService) UpdateBusinessHours(ctx context.Context, salonID, actorID string, raw []byte) (hours.Week, error) {
	if actorID == "" {
		return hours.Week{}, ErrUnauthenticated
	}
	salon, err := s.repo.GetSalon(ctx, salonID)
	if err != nil {
		return hours.Week{}, err
	}
	if actorID != salon.OwnerID {
		return hours.Week{}, ErrForbidden
	}

	week, err := hours.Normalize(raw)
	if err != nil {
		return hours.Week{}, err
	}
	if err := s.repo.UpdateBusinessHours(ctx, salonID, week); err != nil {
		return hours.Week{}, err
	}

	if err := s.cache.InvalidatePrefix(ctx, repository.SalonPrefix(salonID)); err != nil {
		s.logger.Warn().Err(err).Str("salon_id", salonID).Msg("Failed to invalidate slot cache")
	}
	s.logger.Info().Str("salon_id", salonID).Msg("Business hours updated")
	return week, nil
}

func (s *SalonService) GetSalon(ctx context.Context, salonID string) (*models.Salon, error) {
	return s.repo.GetSalon(ctx, salonID)
}
