package models

import "time"

// TimeRange is an "HH:MM" time-of-day pair.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Booking is a rental application: one request for a room or a set of
// workspaces over a date pattern.
type Booking struct {
	ID               int64       `json:"id"`
	Number           string      `json:"number"`
	RentalType       RentalType  `json:"rental_type"`
	RoomID           *int64      `json:"room_id,omitempty"`
	WorkspaceIDs     []int64     `json:"workspace_ids,omitempty"`
	ClientID         int64       `json:"client_id"`
	ClientName       string      `json:"client_name,omitempty"`
	PeriodType       PeriodType  `json:"period_type"`
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
	SelectedDays     []time.Time `json:"selected_days,omitempty"`
	StartTime        string      `json:"start_time,omitempty"`
	EndTime          string      `json:"end_time,omitempty"`
	HourlySlots      []TimeRange `json:"hourly_slots,omitempty"`
	BasePrice        float64     `json:"base_price"`
	AdjustedPrice    *float64    `json:"adjusted_price,omitempty"`
	AdjustmentReason string      `json:"adjustment_reason,omitempty"`
	Quantity         int         `json:"quantity"`
	TotalPrice       float64     `json:"total_price"`
	PaymentType      PaymentType `json:"payment_type"`
	Status           Status      `json:"status"`
	Comment          string      `json:"comment,omitempty"`
	ExtendedFromID   *int64      `json:"extended_from_id,omitempty"`
	Slots            []Slot      `json:"slots,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	Version          int64       `json:"version"`
}

// UnitPrice is the manual adjustment when present, the calculated base price otherwise.
func (b *Booking) UnitPrice() float64 {
	if b.AdjustedPrice != nil {
		return *b.AdjustedPrice
	}
	return b.BasePrice
}

// ResourceRoomID returns the room id or 0 for workspace bookings.
func (b *Booking) ResourceRoomID() int64 {
	if b.RoomID == nil {
		return 0
	}
	return *b.RoomID
}

// Slot is one materialized calendar lock of a booking.
type Slot struct {
	ID          int64     `json:"id"`
	BookingID   int64     `json:"booking_id"`
	RoomID      int64     `json:"room_id"`
	WorkspaceID *int64    `json:"workspace_id,omitempty"`
	Date        time.Time `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Price       float64   `json:"price"`
	Cancelled   bool      `json:"cancelled"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookingFilter narrows ListBookings. Zero values are ignored.
type BookingFilter struct {
	Statuses    []Status
	RentalType  RentalType
	ClientID    int64
	RoomID      int64
	WorkspaceID int64
	From        *time.Time
	To          *time.Time
	Search      string
	Limit       int
	Offset      int
}

// EditStatus tells a caller whether a booking can still be edited.
type EditStatus struct {
	Editable      bool           `json:"editable"`
	Reason        string         `json:"reason,omitempty"`
	HasInvoice    bool           `json:"has_invoice"`
	InvoiceID     *int64         `json:"invoice_id,omitempty"`
	InvoiceStatus *InvoiceStatus `json:"invoice_status,omitempty"`
}
