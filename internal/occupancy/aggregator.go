// Package occupancy builds the per-hour occupancy map of a room for display.
// It reads the same candidate sources as the conflict checker but never
// enforces anything.
package occupancy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/timeslot"

	"github.com/rs/zerolog"
)

const hoursPerDay = 24

// RoomLookup resolves the room an occupancy request is about.
type RoomLookup interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
}

type Aggregator struct {
	rooms   RoomLookup
	sources []domain.CandidateSource
	cache   domain.OccupancyCache
	maxDays int
	logger  zerolog.Logger
}

// NewAggregator wires the aggregator. cache may be nil, in which case every
// day is rebuilt from the sources.
func NewAggregator(rooms RoomLookup, cache domain.OccupancyCache, maxDays int, logger *zerolog.Logger, sources ...domain.CandidateSource) *Aggregator {
	if maxDays <= 0 {
		maxDays = timeslot.MaxRangeDays
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "occupancy").Logger()
	}
	return &Aggregator{rooms: rooms, sources: sources, cache: cache, maxDays: maxDays, logger: l}
}

// RoomOccupancy returns the occupancy of roomID for each requested date,
// keyed by "YYYY-MM-DD". Duplicate dates are collapsed.
func (a *Aggregator) RoomOccupancy(ctx context.Context, roomID int64, dates []time.Time) (models.Occupancy, error) {
	days, err := a.normalize(dates)
	if err != nil {
		return nil, err
	}
	if a.rooms != nil {
		if _, err := a.rooms.GetRoom(ctx, roomID); err != nil {
			return nil, err
		}
	}

	result := make(models.Occupancy, len(days))
	for _, d := range days {
		day, err := a.day(ctx, roomID, d)
		if err != nil {
			return nil, err
		}
		result[timeslot.FormatDate(d)] = day
	}
	return result, nil
}

// Invalidate drops the cached days of a room. Failures are logged only.
func (a *Aggregator) Invalidate(ctx context.Context, roomID int64, dates []time.Time) {
	if a.cache == nil || len(dates) == 0 {
		return
	}
	if err := a.cache.InvalidateDays(ctx, roomID, dates); err != nil {
		a.logger.Warn().Err(err).Int64("room_id", roomID).Int("days", len(dates)).Msg("failed to invalidate occupancy cache")
	}
}

func (a *Aggregator) normalize(dates []time.Time) ([]time.Time, error) {
	if len(dates) == 0 {
		return nil, domain.Validationf("at least one date is required")
	}
	seen := make(map[string]bool, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			return nil, domain.Validationf("date is required")
		}
		day := timeslot.Day(d)
		key := timeslot.FormatDate(day)
		if seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, day)
	}
	if len(days) > a.maxDays {
		return nil, domain.Validationf("at most %d dates can be requested, got %d", a.maxDays, len(days))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (a *Aggregator) day(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, error) {
	if a.cache != nil {
		day, ok, err := a.cache.GetDay(ctx, roomID, date)
		if err != nil {
			a.logger.Warn().Err(err).Int64("room_id", roomID).Msg("occupancy cache read failed")
		} else if ok {
			return day, nil
		}
	}

	day, err := a.build(ctx, roomID, date)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.SetDay(ctx, roomID, date, day); err != nil {
			a.logger.Warn().Err(err).Int64("room_id", roomID).Msg("occupancy cache write failed")
		}
	}
	return day, nil
}

// build merges every live candidate of the day into the hours it touches.
func (a *Aggregator) build(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, error) {
	day := models.DayOccupancy{}
	for _, src := range a.sources {
		candidates, err := src.Candidates(ctx, roomID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s candidates: %w", src.Kind(), err)
		}
		for _, c := range candidates {
			if c.Cancelled {
				continue
			}
			occ := occupantOf(c)
			for h := c.Start / 60; h < hoursPerDay; h++ {
				if !timeslot.Overlaps(c.Start, c.End, h*60, (h+1)*60) {
					break
				}
				day[h] = append(day[h], occ)
			}
		}
	}
	return day, nil
}

func occupantOf(c models.ConflictCandidate) models.Occupant {
	id := c.ID
	if c.OwnerID != 0 {
		id = c.OwnerID
	}
	return models.Occupant{
		Source:      c.Source,
		ID:          id,
		Label:       c.Label,
		WorkspaceID: c.WorkspaceID,
		StartTime:   timeslot.FormatClock(c.Start),
		EndTime:     timeslot.FormatClock(c.End),
	}
}

var _ domain.OccupancyInvalidator = (*Aggregator)(nil)
