package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"parking-anpr-service/internal/domain/anpr"
	"parking-anpr-service/internal/repository"
)

// ParkingService is the registry surface exposed to the transport layer.
type ParkingService struct {
	spots repository.SpotRepository
	log   zerolog.Logger
}

func NewParkingService(spots repository.SpotRepository, log zerolog.Logger) *ParkingService {
	return &ParkingService{
		spots: spots,
		log:   log,
	}
}

func (s *ParkingService) ListSpots(ctx context.Context) ([]anpr.Spot, error) {
	spots, err := s.spots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}
	return spots, nil
}

// CreateSpot registers the plate exactly as given; only a blank plate is rejected.
func (s *ParkingService) CreateSpot(ctx context.Context, plate string) (anpr.Spot, error) {
	if strings.TrimSpace(plate) == "" {
		return anpr.Spot{}, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	spot, err := s.spots.Create(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return anpr.Spot{}, fmt.Errorf("%w: plate %s already in parking", ErrConflict, plate)
		}
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to create spot")
		return anpr.Spot{}, fmt.Errorf("failed to create spot: %w", err)
	}

	s.log.Info().Int64("spot_id", spot.ID).Str("plate", plate).Msg("spot created")
	return spot, nil
}

func (s *ParkingService) GetSpot(ctx context.Context, id int64) (anpr.Spot, error) {
	spot, err := s.spots.Get(ctx, id)
	if err != nil {
		return anpr.Spot{}, s.lookupError(err, id)
	}
	return spot, nil
}

func (s *ParkingService) ExitSpot(ctx context.Context, id int64) (anpr.Spot, error) {
	spot, err := s.spots.Exit(ctx, id)
	if err != nil {
		return anpr.Spot{}, s.lookupError(err, id)
	}

	s.log.Info().Int64("spot_id", spot.ID).Str("plate", spot.Plate).Msg("spot freed")
	return spot, nil
}

func (s *ParkingService) lookupError(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: spot %d", ErrNotFound, id)
	}
	s.log.Error().Err(err).Int64("spot_id", id).Msg("spot lookup failed")
	return fmt.Errorf("failed to load spot %d: %w", id, err)
}
