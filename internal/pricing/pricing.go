// Package pricing sizes a booking: it resolves the unit rate for a rental
// type, the billable quantity for a period, and the resulting total.
// Everything here is a pure function of resource rates and calendar dates.
package pricing

import (
	"math"
	"sort"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/timeslot"
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30
)

// Input is everything the calculator needs. Rooms must contain the target
// room of a room rental, or the parent room of every workspace.
type Input struct {
	RentalType models.RentalType
	RoomID     int64
	Rooms      map[int64]*models.Room
	Workspaces []*models.Workspace
	Period     models.Period
	MaxDays    int
}

// Calculate returns the unit price, quantity and total for in. The period in
// the quote has its end date resolved.
func Calculate(in Input) (models.PriceQuote, error) {
	period, err := NormalizePeriod(in.RentalType, in.Period, in.MaxDays)
	if err != nil {
		return models.PriceQuote{}, err
	}
	unit, err := UnitRate(in.RentalType, in.RoomID, in.Rooms, in.Workspaces)
	if err != nil {
		return models.PriceQuote{}, err
	}
	qty, err := Quantity(in.RentalType, period, in.MaxDays)
	if err != nil {
		return models.PriceQuote{}, err
	}
	return models.PriceQuote{
		UnitPrice:  Round2(unit),
		Quantity:   qty,
		TotalPrice: Total(unit, qty),
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
	}, nil
}

// Total is quantity times unit price rounded to cents.
func Total(unit float64, qty int) float64 {
	return Round2(unit * float64(qty))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizePeriod validates p and fills in derived fields: the end date of
// month periods, and the sorted unique day list of specific-days periods.
func NormalizePeriod(rt models.RentalType, p models.Period, maxDays int) (models.Period, error) {
	if maxDays <= 0 {
		maxDays = timeslot.MaxRangeDays
	}
	if !rt.Valid() {
		return p, domain.Validationf("unknown rental type %q", rt)
	}
	if p.Type == "" {
		p.Type = models.PeriodRange
	}
	if !p.Type.Valid() {
		return p, domain.Validationf("unknown period type %q", p.Type)
	}

	if p.Type == models.PeriodSpecificDays {
		days := uniqueDays(p.SelectedDays)
		if len(days) == 0 {
			return p, domain.Validationf("specific days period requires at least one selected day")
		}
		if len(days) > maxDays {
			return p, domain.Validationf("too many selected days: %d > %d", len(days), maxDays)
		}
		p.SelectedDays = days
		p.StartDate = days[0]
		p.EndDate = days[len(days)-1]
	} else {
		if p.StartDate.IsZero() {
			return p, domain.Validationf("start date is required")
		}
		p.StartDate = timeslot.Day(p.StartDate)
		p.SelectedDays = nil
		switch {
		case !p.EndDate.IsZero():
			p.EndDate = timeslot.Day(p.EndDate)
		case p.Type == models.PeriodSlidingMonth:
			p.EndDate = timeslot.SlidingMonthEnd(p.StartDate)
		case p.Type == models.PeriodCalendarMonth:
			p.EndDate = timeslot.LastDayOfMonth(p.StartDate)
		default:
			p.EndDate = p.StartDate
		}
		if p.EndDate.Before(p.StartDate) {
			return p, domain.Validationf("end date %s is before start date %s",
				timeslot.FormatDate(p.EndDate), timeslot.FormatDate(p.StartDate))
		}
		if n := timeslot.DaysInclusive(p.StartDate, p.EndDate); n > maxDays {
			return p, domain.Validationf("period spans %d days, limit is %d", n, maxDays)
		}
	}

	if rt == models.RentalHourly {
		if _, err := HourlyRanges(p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Dates lists the calendar dates a normalized period occupies.
func Dates(p models.Period, maxDays int) []time.Time {
	if p.Type == models.PeriodSpecificDays {
		return p.SelectedDays
	}
	return timeslot.ExpandDates(p.StartDate, p.EndDate, maxDays)
}

// HourlyRanges returns the time-of-day ranges booked on each date of an
// hourly rental. Explicit hourly slots must be disjoint and one hour long.
func HourlyRanges(p models.Period) ([]timeslot.Range, error) {
	if len(p.HourlySlots) > 0 {
		ranges := make([]timeslot.Range, 0, len(p.HourlySlots))
		for _, s := range p.HourlySlots {
			r, err := timeslot.ParseRange(s.Start, s.End)
			if err != nil {
				return nil, domain.Validationf("hourly slot: %v", err)
			}
			if r.Minutes() != timeslot.MinutesPerHour {
				return nil, domain.Validationf("hourly slot %s must be exactly one hour", r)
			}
			for _, prev := range ranges {
				if prev.Overlaps(r) {
					return nil, domain.Validationf("hourly slots %s and %s overlap", prev, r)
				}
			}
			ranges = append(ranges, r)
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
		return ranges, nil
	}
	if p.StartTime == "" || p.EndTime == "" {
		return nil, domain.Validationf("hourly rental requires start and end time or hourly slots")
	}
	r, err := timeslot.ParseRange(p.StartTime, p.EndTime)
	if err != nil {
		return nil, domain.Validationf("%v", err)
	}
	return []timeslot.Range{r}, nil
}

// Quantity counts billable units of a normalized period.
func Quantity(rt models.RentalType, p models.Period, maxDays int) (int, error) {
	days := len(Dates(p, maxDays))
	switch rt.Unit() {
	case models.UnitHour:
		ranges, err := HourlyRanges(p)
		if err != nil {
			return 0, err
		}
		if len(p.HourlySlots) > 0 {
			return len(ranges) * days, nil
		}
		return HoursCeil(ranges[0].Minutes()) * days, nil
	case models.UnitDay:
		return days, nil
	case models.UnitWeek:
		return int(math.Ceil(float64(days) / daysPerWeek)), nil
	default:
		switch p.Type {
		case models.PeriodSlidingMonth:
			return 1, nil
		case models.PeriodSpecificDays:
			return distinctMonths(p.SelectedDays), nil
		default:
			return timeslot.MonthsSpanned(p.StartDate, p.EndDate), nil
		}
	}
}

// HoursCeil rounds a duration in minutes up to whole hours.
func HoursCeil(minutes int) int {
	return (minutes + timeslot.MinutesPerHour - 1) / timeslot.MinutesPerHour
}

// UnitRate resolves the price of one unit. Workspace rentals sum the rate of
// every selected workspace.
func UnitRate(rt models.RentalType, roomID int64, rooms map[int64]*models.Room, workspaces []*models.Workspace) (float64, error) {
	if rt.IsWorkspace() {
		if len(workspaces) == 0 {
			return 0, domain.Validationf("rental type %s requires at least one workspace", rt)
		}
		var sum float64
		for _, ws := range workspaces {
			rate, ok := workspaceRate(rt.Unit(), ws, rooms[ws.RoomID])
			if !ok {
				return 0, domain.Validationf("workspace %q has no %s rate", ws.Name, rt.Unit())
			}
			sum += rate
		}
		return sum, nil
	}

	room := rooms[roomID]
	if room == nil {
		return 0, domain.Validationf("rental type %s requires a room", rt)
	}
	rate, ok := roomRate(rt.Unit(), room)
	if !ok {
		return 0, domain.Validationf("room %q has no %s rate", room.Name, rt.Unit())
	}
	return rate, nil
}

func roomRate(unit models.Unit, room *models.Room) (float64, bool) {
	daily := firstRate(room.CoworkingDailyRate, room.DailyRate)
	switch unit {
	case models.UnitHour:
		return room.HourlyRate, room.HourlyRate > 0
	case models.UnitDay:
		return deref(daily)
	case models.UnitWeek:
		if room.CoworkingWeeklyRate != nil {
			return *room.CoworkingWeeklyRate, true
		}
		return scaled(daily, daysPerWeek)
	default:
		if room.CoworkingMonthlyRate != nil {
			return *room.CoworkingMonthlyRate, true
		}
		return scaled(daily, daysPerMonth)
	}
}

func workspaceRate(unit models.Unit, ws *models.Workspace, room *models.Room) (float64, bool) {
	daily := ws.DailyRate
	if daily == nil && room != nil {
		daily = firstRate(room.CoworkingDailyRate, room.DailyRate)
	}
	switch unit {
	case models.UnitDay:
		return deref(daily)
	case models.UnitWeek:
		if ws.WeeklyRate != nil {
			return *ws.WeeklyRate, true
		}
		if room != nil && room.CoworkingWeeklyRate != nil {
			return *room.CoworkingWeeklyRate, true
		}
		return scaled(daily, daysPerWeek)
	case models.UnitMonth:
		if ws.MonthlyRate != nil {
			return *ws.MonthlyRate, true
		}
		if room != nil && room.CoworkingMonthlyRate != nil {
			return *room.CoworkingMonthlyRate, true
		}
		return scaled(daily, daysPerMonth)
	}
	return 0, false
}

func firstRate(rates ...*float64) *float64 {
	for _, r := range rates {
		if r != nil {
			return r
		}
	}
	return nil
}

func deref(r *float64) (float64, bool) {
	if r == nil {
		return 0, false
	}
	return *r, true
}

func scaled(r *float64, factor float64) (float64, bool) {
	if r == nil {
		return 0, false
	}
	return *r * factor, true
}

func uniqueDays(days []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		d = timeslot.Day(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func distinctMonths(days []time.Time) int {
	months := make(map[[2]int]struct{})
	for _, d := range days {
		months[[2]int{d.Year(), int(d.Month())}] = struct{}{}
	}
	return len(months)
}
