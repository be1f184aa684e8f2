package repository

import (
	"context"
	"sync"
	"time"

	"roombook/internal/models"
)

type memoryEntry struct {
	day       models.DayOccupancy
	expiresAt time.Time
}

// MemoryOccupancyCache is the in-process stand-in for Redis.
type MemoryOccupancyCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryOccupancyCache(ttl time.Duration) *MemoryOccupancyCache {
	return &MemoryOccupancyCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryOccupancyCache) GetDay(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, bool, error) {
	key := occupancyKey(roomID, date)
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, false, nil
	}
	return entry.day, true, nil
}

func (r *MemoryOccupancyCache) SetDay(ctx context.Context, roomID int64, date time.Time, day models.DayOccupancy) error {
	r.entries.Store(occupancyKey(roomID, date), &memoryEntry{day: day, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemoryOccupancyCache) InvalidateDays(ctx context.Context, roomID int64, dates []time.Time) error {
	for _, d := range dates {
		r.entries.Delete(occupancyKey(roomID, d))
	}
	return nil
}
