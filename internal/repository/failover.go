package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverOccupancyCache serves from the primary cache until it fails, then
// from the fallback, probing the primary again once a minute.
type FailoverOccupancyCache struct {
	primary  domain.OccupancyCache
	fallback domain.OccupancyCache
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverOccupancyCache(primary, fallback domain.OccupancyCache, logger *zerolog.Logger) *FailoverOccupancyCache {
	return &FailoverOccupancyCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverOccupancyCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary occupancy cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether a down primary is due for another attempt.
func (r *FailoverOccupancyCache) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverOccupancyCache) GetDay(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, bool, error) {
	if !r.isDown.Load() {
		day, ok, err := r.primary.GetDay(ctx, roomID, date)
		if err == nil {
			return day, ok, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		day, ok, err := r.primary.GetDay(ctx, roomID, date)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary occupancy cache recovered")
			return day, ok, nil
		}
	}

	return r.fallback.GetDay(ctx, roomID, date)
}

func (r *FailoverOccupancyCache) SetDay(ctx context.Context, roomID int64, date time.Time, day models.DayOccupancy) error {
	if !r.isDown.Load() {
		err := r.primary.SetDay(ctx, roomID, date, day)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetDay(ctx, roomID, date, day)
}

// InvalidateDays clears both caches so neither serves a stale day after the
// other takes over.
func (r *FailoverOccupancyCache) InvalidateDays(ctx context.Context, roomID int64, dates []time.Time) error {
	fallbackErr := r.fallback.InvalidateDays(ctx, roomID, dates)
	if err := r.primary.InvalidateDays(ctx, roomID, dates); err != nil {
		if !r.isDown.Load() {
			r.markDown(err)
		}
	}
	return fallbackErr
}
