package service

import (
	"context"
	"fmt"
	"sort"

	"roombook/internal/conflict"
	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/pricing"
	"roombook/internal/timeslot"

	"github.com/rs/zerolog"
)

// AvailabilityResult is the advisory answer of CheckAvailability.
type AvailabilityResult struct {
	Available bool                  `json:"available"`
	Conflicts []domain.ConflictInfo `json:"conflicts"`
}

// AvailabilityService answers "is this resource free" for a whole period.
// The read-only CheckAvailability is best effort. The booking service calls
// ensureAvailable inside its write transaction, which is authoritative.
type AvailabilityService struct {
	repo    domain.Repository
	checker *conflict.Checker
	maxDays int
	logger  zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, checker *conflict.Checker, maxDays int, logger *zerolog.Logger) *AvailabilityService {
	if maxDays <= 0 {
		maxDays = timeslot.MaxRangeDays
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "availability").Logger()
	}
	return &AvailabilityService{repo: repo, checker: checker, maxDays: maxDays, logger: l}
}

// CheckAvailability collects every conflict of the requested period.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, req models.AvailabilityRequest) (*AvailabilityResult, error) {
	res, err := resolveResources(ctx, s.repo, req.RentalType, req.Resource)
	if err != nil {
		return nil, err
	}
	period, err := pricing.NormalizePeriod(req.RentalType, req.Period, s.maxDays)
	if err != nil {
		return nil, err
	}

	found, err := s.scan(ctx, req.RentalType, res, period, req.ExcludeBookingID, req.TeacherID, false)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []domain.ConflictInfo{}
	}
	return &AvailabilityResult{Available: len(found) == 0, Conflicts: found}, nil
}

// ensureAvailable fails with a *domain.ConflictError when the period is
// taken. Hourly requests stop at the first collision.
func (s *AvailabilityService) ensureAvailable(ctx context.Context, rt models.RentalType, res *resources, period models.Period, excludeBookingID int64) error {
	found, err := s.scan(ctx, rt, res, period, excludeBookingID, nil, rt == models.RentalHourly)
	if err != nil {
		return err
	}
	return domain.NewConflictError(found)
}

func (s *AvailabilityService) scan(ctx context.Context, rt models.RentalType, res *resources, period models.Period,
	excludeBookingID int64, teacherID *int64, failFast bool) ([]domain.ConflictInfo, error) {
	dates := pricing.Dates(period, s.maxDays)

	if rt.IsWorkspace() {
		return s.scanWorkspaces(ctx, res, period, excludeBookingID)
	}

	windows := []timeslot.Range{timeslot.FullDay}
	if rt == models.RentalHourly {
		var err error
		if windows, err = pricing.HourlyRanges(period); err != nil {
			return nil, err
		}
	}

	var found []domain.ConflictInfo
	for _, d := range dates {
		for _, w := range windows {
			q := conflict.Query{
				Date:      d,
				Window:    w,
				RoomIDs:   []int64{res.roomID},
				Exclude:   conflict.ExcludeBooking(excludeBookingID),
				TeacherID: teacherID,
			}
			if failFast {
				if err := s.checker.CheckConflicts(ctx, q); err != nil {
					return nil, err
				}
				continue
			}
			infos, err := s.checker.Collect(ctx, q)
			if err != nil {
				return nil, err
			}
			found = append(found, infos...)
		}
	}
	return found, nil
}

// scanWorkspaces only looks at other bookings holding the same desks.
// Different workspaces of one room never collide with each other.
func (s *AvailabilityService) scanWorkspaces(ctx context.Context, res *resources, period models.Period, excludeBookingID int64) ([]domain.ConflictInfo, error) {
	ids := make([]int64, 0, len(res.workspaces))
	for _, ws := range res.workspaces {
		ids = append(ids, ws.ID)
	}
	hits, err := s.repo.FindWorkspaceConflicts(ctx, ids, pricing.Dates(period, s.maxDays), excludeBookingID)
	if err != nil {
		return nil, err
	}

	found := make([]domain.ConflictInfo, 0, len(hits))
	for _, h := range hits {
		metrics.IncConflict(string(models.SourceRentalSlot))
		date := timeslot.FormatDate(h.Date)
		found = append(found, domain.ConflictInfo{
			Source:        string(models.SourceRentalSlot),
			ID:            h.BookingID,
			WorkspaceID:   h.WorkspaceID,
			WorkspaceName: h.WorkspaceName,
			BookingID:     h.BookingID,
			BookingNumber: h.BookingNumber,
			Date:          date,
			Start:         timeslot.FormatClock(timeslot.FullDay.Start),
			End:           timeslot.FormatClock(timeslot.FullDay.End),
			Message:       fmt.Sprintf("workspace %s is taken on %s by booking %s", h.WorkspaceName, date, h.BookingNumber),
		})
	}
	return found, nil
}

// resources is the resolved target of a booking request.
type resources struct {
	roomID     int64
	rooms      map[int64]*models.Room
	workspaces []*models.Workspace
}

func resolveResources(ctx context.Context, repo domain.Repository, rt models.RentalType, sel models.ResourceSelector) (*resources, error) {
	if !rt.Valid() {
		return nil, domain.Validationf("unknown rental type %q", rt)
	}

	if !rt.IsWorkspace() {
		if sel.RoomID == nil || *sel.RoomID <= 0 {
			return nil, domain.Validationf("%s rental requires a room", rt)
		}
		if len(sel.WorkspaceIDs) > 0 {
			return nil, domain.Validationf("%s rental cannot target workspaces", rt)
		}
		room, err := repo.GetRoom(ctx, *sel.RoomID)
		if err != nil {
			return nil, err
		}
		if !room.IsActive {
			return nil, domain.Validationf("room %q is not active", room.Name)
		}
		return &resources{roomID: room.ID, rooms: map[int64]*models.Room{room.ID: room}}, nil
	}

	if len(sel.WorkspaceIDs) == 0 {
		return nil, domain.Validationf("%s rental requires at least one workspace", rt)
	}
	if sel.RoomID != nil {
		return nil, domain.Validationf("%s rental cannot target a whole room", rt)
	}
	ids := append([]int64(nil), sel.WorkspaceIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, domain.Validationf("workspace %d is listed twice", ids[i])
		}
	}

	workspaces, err := repo.GetWorkspaces(ctx, ids)
	if err != nil {
		return nil, err
	}
	var roomIDs []int64
	seen := map[int64]bool{}
	for _, ws := range workspaces {
		if !ws.IsActive {
			return nil, domain.Validationf("workspace %q is not active", ws.Name)
		}
		if !seen[ws.RoomID] {
			seen[ws.RoomID] = true
			roomIDs = append(roomIDs, ws.RoomID)
		}
	}
	rooms, err := repo.GetRoomsByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	return &resources{rooms: rooms, workspaces: workspaces}, nil
}
