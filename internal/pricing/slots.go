package pricing

import (
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/timeslot"
)

// PlanSlots materializes the calendar locks of a booking. Hourly rentals get
// one slot per date per time range; other rentals get a full-day slot per
// date for the room, or per date per workspace. Slot prices add up to total.
func PlanSlots(rt models.RentalType, p models.Period, roomID int64, workspaces []*models.Workspace, unit float64, total float64, maxDays int) ([]models.Slot, error) {
	dates := Dates(p, maxDays)

	if rt == models.RentalHourly {
		ranges, err := HourlyRanges(p)
		if err != nil {
			return nil, err
		}
		slots := make([]models.Slot, 0, len(dates)*len(ranges))
		for _, d := range dates {
			for _, r := range ranges {
				units := HoursCeil(r.Minutes())
				if len(p.HourlySlots) > 0 {
					units = 1
				}
				slots = append(slots, newSlot(roomID, nil, d, r, Round2(unit*float64(units))))
			}
		}
		return balance(slots, total), nil
	}

	var slots []models.Slot
	for _, d := range dates {
		if rt.IsWorkspace() {
			for _, ws := range workspaces {
				id := ws.ID
				slots = append(slots, newSlot(ws.RoomID, &id, d, timeslot.FullDay, 0))
			}
			continue
		}
		slots = append(slots, newSlot(roomID, nil, d, timeslot.FullDay, 0))
	}
	if len(slots) == 0 {
		return slots, nil
	}
	share := Round2(total / float64(len(slots)))
	for i := range slots {
		slots[i].Price = share
	}
	return balance(slots, total), nil
}

// SlotUnits is the number of billable units one slot of b stands for.
// Explicit hourly slots are one unit each; a plain hourly window counts
// its started hours.
func SlotUnits(b *models.Booking, slot models.Slot) int {
	if b.RentalType != models.RentalHourly || len(b.HourlySlots) > 0 {
		return 1
	}
	r, err := timeslot.ParseRange(slot.StartTime, slot.EndTime)
	if err != nil {
		return 1
	}
	return HoursCeil(r.Minutes())
}

// CheckSlotRemoval fails unless every slot of b is a whole number of billing
// units. Weekly and monthly rentals bill a day as a fraction of a unit, and a
// multi-workspace rental prices one unit as the sum of all its desks.
func CheckSlotRemoval(b *models.Booking) error {
	switch {
	case b.RentalType == models.RentalHourly:
		return nil
	case b.RentalType.Unit() != models.UnitDay:
		return domain.Invariantf("booking %s is billed per %s; change its period instead of removing a day",
			b.Number, b.RentalType.Unit())
	case b.RentalType.IsWorkspace() && len(b.WorkspaceIDs) > 1:
		return domain.Invariantf("booking %s holds %d workspaces; change its workspaces or period instead of removing a slot",
			b.Number, len(b.WorkspaceIDs))
	}
	return nil
}

// AfterSlotRemoval returns the quantity and total of b once the slot at idx
// is gone, together with the remaining slots repriced so they add up to the
// new total.
func AfterSlotRemoval(b *models.Booking, idx int) (int, float64, []models.Slot, error) {
	if err := CheckSlotRemoval(b); err != nil {
		return 0, 0, nil, err
	}
	if idx < 0 || idx >= len(b.Slots) {
		return 0, 0, nil, domain.NotFoundf("slot #%d of booking %s", idx, b.Number)
	}
	if len(b.Slots) == 1 {
		return 0, 0, nil, domain.Invariantf("cannot remove the last slot of booking %s", b.Number)
	}

	unit := b.UnitPrice()
	rest := make([]models.Slot, 0, len(b.Slots)-1)
	qty := 0
	for i, sl := range b.Slots {
		if i == idx {
			continue
		}
		units := SlotUnits(b, sl)
		qty += units
		sl.Price = Round2(unit * float64(units))
		rest = append(rest, sl)
	}
	total := Total(unit, qty)
	return qty, total, balance(rest, total), nil
}

func newSlot(roomID int64, workspaceID *int64, date time.Time, r timeslot.Range, price float64) models.Slot {
	return models.Slot{
		RoomID:      roomID,
		WorkspaceID: workspaceID,
		Date:        date,
		StartTime:   timeslot.FormatClock(r.Start),
		EndTime:     timeslot.FormatClock(r.End),
		Price:       price,
	}
}

// balance puts the rounding remainder on the last slot.
func balance(slots []models.Slot, total float64) []models.Slot {
	if len(slots) == 0 {
		return slots
	}
	var sum float64
	for _, s := range slots[:len(slots)-1] {
		sum += s.Price
	}
	slots[len(slots)-1].Price = Round2(total - sum)
	return slots
}
