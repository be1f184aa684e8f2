package pricing

import (
	"errors"
	"testing"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func testRoom() *models.Room {
	return &models.Room{
		ID:         1,
		Name:       "Hall",
		HourlyRate: 1000,
		DailyRate:  models.Rate(6000),
	}
}

func TestHourlyRoomBooking(t *testing.T) {
	room := testRoom()
	q, err := Calculate(Input{
		RentalType: models.RentalHourly,
		RoomID:     room.ID,
		Rooms:      map[int64]*models.Room{room.ID: room},
		Period: models.Period{
			Type:      models.PeriodRange,
			StartDate: date(t, "2025-03-01"),
			StartTime: "10:00",
			EndTime:   "13:00",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, q.UnitPrice)
	assert.Equal(t, 3, q.Quantity)
	assert.Equal(t, 3000.0, q.TotalPrice)
	assert.Equal(t, date(t, "2025-03-01"), q.EndDate)
}

func TestHourlyRoundsPartialHoursUp(t *testing.T) {
	room := testRoom()
	q, err := Calculate(Input{
		RentalType: models.RentalHourly,
		RoomID:     room.ID,
		Rooms:      map[int64]*models.Room{room.ID: room},
		Period: models.Period{
			StartDate: date(t, "2025-03-01"),
			EndDate:   date(t, "2025-03-02"),
			StartTime: "10:00",
			EndTime:   "11:30",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, q.Quantity, "2 hours per day over 2 days")
	assert.Equal(t, 4000.0, q.TotalPrice)
}

func TestHourlyExplicitSlots(t *testing.T) {
	room := testRoom()
	in := Input{
		RentalType: models.RentalHourly,
		RoomID:     room.ID,
		Rooms:      map[int64]*models.Room{room.ID: room},
		Period: models.Period{
			StartDate: date(t, "2025-03-01"),
			HourlySlots: []models.TimeRange{
				{Start: "15:00", End: "16:00"},
				{Start: "09:00", End: "10:00"},
			},
		},
	}
	q, err := Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Quantity)
	assert.Equal(t, 2000.0, q.TotalPrice)

	p, err := NormalizePeriod(in.RentalType, in.Period, 0)
	require.NoError(t, err)
	slots, err := PlanSlots(in.RentalType, p, room.ID, nil, q.UnitPrice, q.TotalPrice, 0)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, 1000.0, slots[0].Price)

	in.Period.HourlySlots = append(in.Period.HourlySlots, models.TimeRange{Start: "09:30", End: "10:30"})
	_, err = Calculate(in)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	in.Period.HourlySlots = []models.TimeRange{{Start: "09:00", End: "11:00"}}
	_, err = Calculate(in)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDailyQuantity(t *testing.T) {
	room := testRoom()
	rooms := map[int64]*models.Room{room.ID: room}

	q, err := Calculate(Input{
		RentalType: models.RentalRoomDaily,
		RoomID:     room.ID,
		Rooms:      rooms,
		Period:     models.Period{Type: models.PeriodRange, StartDate: date(t, "2025-03-01"), EndDate: date(t, "2025-03-05")},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, q.Quantity)
	assert.Equal(t, 30000.0, q.TotalPrice)

	q, err = Calculate(Input{
		RentalType: models.RentalRoomDaily,
		RoomID:     room.ID,
		Rooms:      rooms,
		Period: models.Period{
			Type: models.PeriodSpecificDays,
			SelectedDays: []time.Time{
				date(t, "2025-03-10"), date(t, "2025-03-03"), date(t, "2025-03-10"),
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Quantity, "duplicates collapse")
	assert.Equal(t, date(t, "2025-03-03"), q.StartDate)
	assert.Equal(t, date(t, "2025-03-10"), q.EndDate)
}

func TestWeeklyQuantityRoundsUp(t *testing.T) {
	room := testRoom()
	q, err := Calculate(Input{
		RentalType: models.RentalRoomWeekly,
		RoomID:     room.ID,
		Rooms:      map[int64]*models.Room{room.ID: room},
		Period:     models.Period{StartDate: date(t, "2025-03-01"), EndDate: date(t, "2025-03-08")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Quantity)
	assert.Equal(t, 42000.0, q.UnitPrice, "weekly falls back to daily x 7")
}

func TestMonthlyQuantity(t *testing.T) {
	room := testRoom()
	ws := &models.Workspace{ID: 10, RoomID: room.ID, Name: "Desk 1", DailyRate: models.Rate(500), MonthlyRate: models.Rate(9000)}
	rooms := map[int64]*models.Room{room.ID: room}

	q, err := Calculate(Input{
		RentalType: models.RentalWorkspaceMonthly,
		Rooms:      rooms,
		Workspaces: []*models.Workspace{ws},
		Period:     models.Period{Type: models.PeriodCalendarMonth, StartDate: date(t, "2025-03-01")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Quantity)
	assert.Equal(t, 9000.0, q.TotalPrice)
	assert.Equal(t, date(t, "2025-03-31"), q.EndDate)

	q, err = Calculate(Input{
		RentalType: models.RentalWorkspaceMonthly,
		Rooms:      rooms,
		Workspaces: []*models.Workspace{ws},
		Period:     models.Period{Type: models.PeriodCalendarMonth, StartDate: date(t, "2025-03-15"), EndDate: date(t, "2025-05-10")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Quantity)

	q, err = Calculate(Input{
		RentalType: models.RentalWorkspaceMonthly,
		Rooms:      rooms,
		Workspaces: []*models.Workspace{ws},
		Period:     models.Period{Type: models.PeriodSlidingMonth, StartDate: date(t, "2025-03-15")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Quantity)
	assert.Equal(t, date(t, "2025-04-14"), q.EndDate)
}

func TestWorkspaceRatesAreSummed(t *testing.T) {
	room := &models.Room{ID: 1, Name: "Open space", IsCoworking: true, CoworkingDailyRate: models.Rate(700)}
	rooms := map[int64]*models.Room{room.ID: room}
	wss := []*models.Workspace{
		{ID: 1, RoomID: 1, Name: "A", DailyRate: models.Rate(500)},
		{ID: 2, RoomID: 1, Name: "B"},
	}

	unit, err := UnitRate(models.RentalWorkspaceDaily, 0, rooms, wss)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, unit, "B falls back to the room coworking daily rate")

	_, err = UnitRate(models.RentalWorkspaceDaily, 0, rooms, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRoomRateFallbacks(t *testing.T) {
	room := &models.Room{ID: 1, Name: "Studio", HourlyRate: 900, DailyRate: models.Rate(5000), CoworkingMonthlyRate: models.Rate(80000)}
	rooms := map[int64]*models.Room{1: room}

	daily, err := UnitRate(models.RentalRoomDaily, 1, rooms, nil)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, daily)

	monthly, err := UnitRate(models.RentalRoomMonthly, 1, rooms, nil)
	require.NoError(t, err)
	assert.Equal(t, 80000.0, monthly)

	noRates := map[int64]*models.Room{2: {ID: 2, Name: "Bare", HourlyRate: 100}}
	_, err = UnitRate(models.RentalRoomDaily, 2, noRates, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = UnitRate(models.RentalRoomDaily, 3, rooms, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestNormalizePeriodValidation(t *testing.T) {
	_, err := NormalizePeriod(models.RentalRoomDaily, models.Period{Type: models.PeriodRange}, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NormalizePeriod(models.RentalRoomDaily, models.Period{
		StartDate: date(t, "2025-03-05"),
		EndDate:   date(t, "2025-03-01"),
	}, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NormalizePeriod(models.RentalRoomDaily, models.Period{
		StartDate: date(t, "2025-01-01"),
		EndDate:   date(t, "2026-06-01"),
	}, 365)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NormalizePeriod(models.RentalHourly, models.Period{StartDate: date(t, "2025-01-01")}, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NormalizePeriod(models.RentalRoomDaily, models.Period{Type: models.PeriodSpecificDays}, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestPlanSlotsSumToTotal(t *testing.T) {
	p, err := NormalizePeriod(models.RentalRoomWeekly, models.Period{
		StartDate: date(t, "2025-03-01"),
		EndDate:   date(t, "2025-03-03"),
	}, 0)
	require.NoError(t, err)

	slots, err := PlanSlots(models.RentalRoomWeekly, p, 1, nil, 1000, 1000, 0)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	var sum float64
	for _, s := range slots {
		assert.Equal(t, "00:00", s.StartTime)
		assert.Equal(t, "24:00", s.EndTime)
		sum += s.Price
	}
	assert.InDelta(t, 1000.0, sum, 0.001)
}

func TestPlanSlotsPerWorkspace(t *testing.T) {
	p, err := NormalizePeriod(models.RentalWorkspaceDaily, models.Period{
		StartDate: date(t, "2025-03-01"),
		EndDate:   date(t, "2025-03-02"),
	}, 0)
	require.NoError(t, err)
	wss := []*models.Workspace{{ID: 1, RoomID: 7}, {ID: 2, RoomID: 7}}

	slots, err := PlanSlots(models.RentalWorkspaceDaily, p, 0, wss, 1000, 2000, 0)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	for _, s := range slots {
		assert.Equal(t, int64(7), s.RoomID)
		require.NotNil(t, s.WorkspaceID)
	}
}

func fullDays(n int) []models.Slot {
	slots := make([]models.Slot, n)
	for i := range slots {
		slots[i] = models.Slot{ID: int64(i + 1), StartTime: "00:00", EndTime: "24:00"}
	}
	return slots
}

func TestAfterSlotRemoval(t *testing.T) {
	b := &models.Booking{RentalType: models.RentalRoomDaily, BasePrice: 1500, Quantity: 4, Slots: fullDays(4)}
	qty, total, rest, err := AfterSlotRemoval(b, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 4500.0, total)
	require.Len(t, rest, 3)
	assert.Equal(t, []int64{1, 3, 4}, []int64{rest[0].ID, rest[1].ID, rest[2].ID})

	b.AdjustedPrice = models.Rate(1000.01)
	qty, total, rest, err = AfterSlotRemoval(b, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 3000.03, total)
	var sum float64
	for _, s := range rest {
		sum += s.Price
	}
	assert.InDelta(t, total, sum, 0.001)

	hourly := &models.Booking{RentalType: models.RentalHourly, BasePrice: 1000, Quantity: 5, Slots: []models.Slot{
		{ID: 1, StartTime: "09:00", EndTime: "10:00"},
		{ID: 2, StartTime: "12:00", EndTime: "15:30"},
	}}
	qty, total, rest, err = AfterSlotRemoval(hourly, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, qty)
	assert.Equal(t, 4000.0, total)
	require.Len(t, rest, 1)
	assert.Equal(t, 4000.0, rest[0].Price)

	_, _, _, err = AfterSlotRemoval(hourly, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	single := &models.Booking{RentalType: models.RentalRoomDaily, BasePrice: 1500, Quantity: 1, Slots: fullDays(1)}
	_, _, _, err = AfterSlotRemoval(single, 0)
	assert.ErrorIs(t, err, domain.ErrInvariant)
}

func TestAfterSlotRemovalRejectsPartialUnits(t *testing.T) {
	ws := []int64{1, 2}
	tests := []struct {
		name string
		b    *models.Booking
	}{
		{"two desks daily", &models.Booking{RentalType: models.RentalWorkspaceDaily, WorkspaceIDs: ws, BasePrice: 900, Quantity: 2, Slots: fullDays(4)}},
		{"room weekly", &models.Booking{RentalType: models.RentalRoomWeekly, BasePrice: 42000, Quantity: 2, Slots: fullDays(14)}},
		{"desk monthly", &models.Booking{RentalType: models.RentalWorkspaceMonthly, WorkspaceIDs: ws[:1], BasePrice: 9000, Quantity: 1, Slots: fullDays(30)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := AfterSlotRemoval(tt.b, 0)
			assert.ErrorIs(t, err, domain.ErrInvariant)
		})
	}

	desk := &models.Booking{RentalType: models.RentalWorkspaceDaily, WorkspaceIDs: ws[:1], BasePrice: 500, Quantity: 3, Slots: fullDays(3)}
	qty, total, _, err := AfterSlotRemoval(desk, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
	assert.Equal(t, 1000.0, total)
}

func TestTotalInvariant(t *testing.T) {
	for _, unit := range []float64{0.1, 33.33, 999.99, 1234.5} {
		for qty := 1; qty <= 40; qty++ {
			assert.InDelta(t, unit*float64(qty), Total(unit, qty), 0.005)
		}
	}
}
