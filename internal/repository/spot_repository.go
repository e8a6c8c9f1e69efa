package repository

import (
	"context"
	"errors"
	"sync"

	"parking-anpr-service/internal/domain/anpr"
)

var (
	ErrNotFound = errors.New("spot not found")
	ErrConflict = errors.New("plate already in parking")
)

type SpotRepository interface {
	List(ctx context.Context) ([]anpr.Spot, error)
	Create(ctx context.Context, plate string) (anpr.Spot, error)
	Get(ctx context.Context, id int64) (anpr.Spot, error)
	Exit(ctx context.Context, id int64) (anpr.Spot, error)
}

// MemorySpotRepository keeps spots for the lifetime of the process. One lock
// guards the spot list, the occupied-plate index and the id counter.
type MemorySpotRepository struct {
	mu       sync.RWMutex
	spots    []anpr.Spot
	byID     map[int64]int
	occupied map[string]int64
	lastID   int64
}

func NewMemorySpotRepository() *MemorySpotRepository {
	return &MemorySpotRepository{
		byID:     make(map[int64]int),
		occupied: make(map[string]int64),
	}
}

func (r *MemorySpotRepository) List(ctx context.Context) ([]anpr.Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]anpr.Spot, len(r.spots))
	copy(out, r.spots)
	return out, nil
}

func (r *MemorySpotRepository) Create(ctx context.Context, plate string) (anpr.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.occupied[plate]; ok {
		return anpr.Spot{}, ErrConflict
	}

	r.lastID++
	spot := anpr.Spot{
		ID:     r.lastID,
		Plate:  plate,
		Status: anpr.SpotOccupied,
	}
	r.byID[spot.ID] = len(r.spots)
	r.spots = append(r.spots, spot)
	r.occupied[plate] = spot.ID
	return spot, nil
}

func (r *MemorySpotRepository) Get(ctx context.Context, id int64) (anpr.Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return anpr.Spot{}, ErrNotFound
	}
	return r.spots[i], nil
}

// Exit frees the spot. Freeing an already free spot is not an error.
func (r *MemorySpotRepository) Exit(ctx context.Context, id int64) (anpr.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return anpr.Spot{}, ErrNotFound
	}
	spot := &r.spots[i]
	if spot.Status == anpr.SpotOccupied && r.occupied[spot.Plate] == spot.ID {
		delete(r.occupied, spot.Plate)
	}
	spot.Status = anpr.SpotFree
	return *spot, nil
}
