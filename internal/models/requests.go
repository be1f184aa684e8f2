package models

import "time"

// ResourceSelector names the room, or the workspaces, a booking holds.
type ResourceSelector struct {
	RoomID       *int64  `json:"room_id,omitempty"`
	WorkspaceIDs []int64 `json:"workspace_ids,omitempty"`
}

// Period describes the date pattern of a booking. A zero EndDate is derived
// from the period type where possible.
type Period struct {
	Type         PeriodType  `json:"period_type"`
	StartDate    time.Time   `json:"start_date"`
	EndDate      time.Time   `json:"end_date"`
	SelectedDays []time.Time `json:"selected_days,omitempty"`
	StartTime    string      `json:"start_time,omitempty"`
	EndTime      string      `json:"end_time,omitempty"`
	HourlySlots  []TimeRange `json:"hourly_slots,omitempty"`
}

// BookingRequest carries the editable parameters of a booking on create and update.
type BookingRequest struct {
	RentalType       RentalType       `json:"rental_type"`
	Resource         ResourceSelector `json:"resource"`
	ClientID         int64            `json:"client_id"`
	Period           Period           `json:"period"`
	AdjustedPrice    *float64         `json:"adjusted_price,omitempty"`
	AdjustmentReason string           `json:"adjustment_reason,omitempty"`
	PaymentType      PaymentType      `json:"payment_type"`
	Comment          string           `json:"comment,omitempty"`
	Submit           bool             `json:"submit"`
	IgnoreConflicts  bool             `json:"ignore_conflicts"`
}

// ExtendRequest gives the new dates of an extension. A zero StartDate starts
// the day after the original booking ends.
type ExtendRequest struct {
	StartDate       time.Time   `json:"start_date"`
	EndDate         time.Time   `json:"end_date"`
	SelectedDays    []time.Time `json:"selected_days,omitempty"`
	IgnoreConflicts bool        `json:"ignore_conflicts"`
}

// AvailabilityRequest asks whether a resource is free over a period.
type AvailabilityRequest struct {
	RentalType       RentalType       `json:"rental_type"`
	Resource         ResourceSelector `json:"resource"`
	Period           Period           `json:"period"`
	ExcludeBookingID int64            `json:"exclude_booking_id,omitempty"`
	TeacherID        *int64           `json:"teacher_id,omitempty"`
}

// PriceQuote is the result of the price calculator.
type PriceQuote struct {
	UnitPrice  float64   `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// BatchResult reports per-id outcomes of a batch operation.
type BatchResult struct {
	Succeeded []int64     `json:"succeeded"`
	Skipped   []BatchSkip `json:"skipped"`
}

type BatchSkip struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}
