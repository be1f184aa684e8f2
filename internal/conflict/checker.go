// Package conflict detects overlaps between a requested time window and the
// reservations already held on a room, across every injected source.
package conflict

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/timeslot"

	"github.com/rs/zerolog"
)

// Exclusions skips candidates by source and id. For rental slots the id is
// the owning booking, so a booking can be re-validated against itself.
type Exclusions map[models.SourceKind][]int64

func (e Exclusions) excludes(c models.ConflictCandidate) bool {
	key := c.ID
	if c.OwnerID != 0 {
		key = c.OwnerID
	}
	for _, id := range e[c.Source] {
		if id == key {
			return true
		}
	}
	return false
}

// ExcludeBooking builds the exclusions for re-checking an existing booking.
func ExcludeBooking(bookingID int64) Exclusions {
	if bookingID == 0 {
		return nil
	}
	return Exclusions{models.SourceRentalSlot: {bookingID}}
}

// Query is one conflict check: a date, a half-open time window and the rooms to scan.
type Query struct {
	Date      time.Time
	Window    timeslot.Range
	RoomIDs   []int64
	Exclude   Exclusions
	TeacherID *int64
}

// Observer is told about every conflict found, e.g. to count them.
type Observer func(source models.SourceKind)

type Checker struct {
	sources  []domain.CandidateSource
	logger   zerolog.Logger
	observer Observer
}

func NewChecker(logger *zerolog.Logger, sources ...domain.CandidateSource) *Checker {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "conflict").Logger()
	}
	return &Checker{sources: sources, logger: l}
}

func (c *Checker) SetObserver(o Observer) {
	c.observer = o
}

// CheckConflicts returns a *domain.ConflictError describing the first
// collision found for each room, or nil when the window is free.
func (c *Checker) CheckConflicts(ctx context.Context, q Query) error {
	var found []domain.ConflictInfo
	for _, roomID := range q.RoomIDs {
		info, err := c.firstInRoom(ctx, q, roomID)
		if err != nil {
			return err
		}
		if info != nil {
			found = append(found, *info)
			break
		}
	}
	if len(found) == 0 && q.TeacherID != nil {
		infos, err := c.scanTeacher(ctx, q, true)
		if err != nil {
			return err
		}
		found = append(found, infos...)
	}
	if len(found) > 0 {
		c.logger.Debug().
			Str("date", timeslot.FormatDate(q.Date)).
			Str("window", q.Window.String()).
			Str("source", found[0].Source).
			Msg("conflict detected")
	}
	return domain.NewConflictError(found)
}

// Collect returns every collision in the window instead of stopping at the first.
func (c *Checker) Collect(ctx context.Context, q Query) ([]domain.ConflictInfo, error) {
	var found []domain.ConflictInfo
	for _, roomID := range q.RoomIDs {
		for _, src := range c.sources {
			cands, err := src.Candidates(ctx, roomID, q.Date)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s candidates: %w", src.Kind(), err)
			}
			for _, cand := range cands {
				if c.collides(q, cand) {
					found = append(found, c.describe(cand))
				}
			}
		}
	}
	if q.TeacherID != nil {
		infos, err := c.scanTeacher(ctx, q, false)
		if err != nil {
			return nil, err
		}
		found = append(found, infos...)
	}
	return found, nil
}

func (c *Checker) firstInRoom(ctx context.Context, q Query, roomID int64) (*domain.ConflictInfo, error) {
	for _, src := range c.sources {
		cands, err := src.Candidates(ctx, roomID, q.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s candidates: %w", src.Kind(), err)
		}
		for _, cand := range cands {
			if c.collides(q, cand) {
				info := c.describe(cand)
				return &info, nil
			}
		}
	}
	return nil, nil
}

func (c *Checker) scanTeacher(ctx context.Context, q Query, first bool) ([]domain.ConflictInfo, error) {
	var found []domain.ConflictInfo
	for _, src := range c.sources {
		ts, ok := src.(domain.TeacherScheduleSource)
		if !ok {
			continue
		}
		cands, err := ts.TeacherCandidates(ctx, *q.TeacherID, q.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to load teacher sessions: %w", err)
		}
		for _, cand := range cands {
			if !c.collides(q, cand) {
				continue
			}
			info := c.describe(cand)
			info.Message = "teacher is busy: " + info.Message
			found = append(found, info)
			if first {
				return found, nil
			}
		}
	}
	return found, nil
}

func (c *Checker) collides(q Query, cand models.ConflictCandidate) bool {
	if cand.Cancelled || q.Exclude.excludes(cand) {
		return false
	}
	return timeslot.Overlaps(q.Window.Start, q.Window.End, cand.Start, cand.End)
}

func (c *Checker) describe(cand models.ConflictCandidate) domain.ConflictInfo {
	if c.observer != nil {
		c.observer(cand.Source)
	}
	info := domain.ConflictInfo{
		Source: string(cand.Source),
		ID:     cand.ID,
		RoomID: cand.RoomID,
		Date:   timeslot.FormatDate(cand.Date),
		Start:  timeslot.FormatClock(cand.Start),
		End:    timeslot.FormatClock(cand.End),
		Label:  cand.Label,
	}
	if cand.WorkspaceID != nil {
		info.WorkspaceID = *cand.WorkspaceID
	}
	if cand.Source == models.SourceRentalSlot {
		info.BookingID = cand.OwnerID
		info.BookingNumber = cand.Label
	}
	info.Message = fmt.Sprintf("%s %s-%s on %s", sourceTitle(cand.Source), info.Start, info.End, info.Date)
	if cand.Label != "" {
		info.Message += fmt.Sprintf(" (%s)", cand.Label)
	}
	return info
}

func sourceTitle(kind models.SourceKind) string {
	switch kind {
	case models.SourceClassSession:
		return "class session"
	case models.SourceRentalSlot:
		return "rental"
	case models.SourceEvent:
		return "event"
	case models.SourceManualHold:
		return "manual hold"
	default:
		return string(kind)
	}
}
