package models

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal states are immutable.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// RentalType selects the billing unit and the kind of resource a booking holds.
type RentalType string

const (
	RentalHourly           RentalType = "hourly"
	RentalWorkspaceDaily   RentalType = "workspace_daily"
	RentalWorkspaceWeekly  RentalType = "workspace_weekly"
	RentalWorkspaceMonthly RentalType = "workspace_monthly"
	RentalRoomDaily        RentalType = "room_daily"
	RentalRoomWeekly       RentalType = "room_weekly"
	RentalRoomMonthly      RentalType = "room_monthly"
)

// Unit is the billing unit of a rental type.
type Unit string

const (
	UnitHour  Unit = "hour"
	UnitDay   Unit = "day"
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
)

func (r RentalType) Valid() bool {
	switch r {
	case RentalHourly, RentalWorkspaceDaily, RentalWorkspaceWeekly, RentalWorkspaceMonthly,
		RentalRoomDaily, RentalRoomWeekly, RentalRoomMonthly:
		return true
	}
	return false
}

// IsWorkspace reports whether the rental targets a set of workspaces rather than a room.
func (r RentalType) IsWorkspace() bool {
	return r == RentalWorkspaceDaily || r == RentalWorkspaceWeekly || r == RentalWorkspaceMonthly
}

func (r RentalType) Unit() Unit {
	switch r {
	case RentalHourly:
		return UnitHour
	case RentalWorkspaceDaily, RentalRoomDaily:
		return UnitDay
	case RentalWorkspaceWeekly, RentalRoomWeekly:
		return UnitWeek
	default:
		return UnitMonth
	}
}

// PeriodType is the shape of a booking's date pattern.
type PeriodType string

const (
	PeriodRange         PeriodType = "range"
	PeriodSpecificDays  PeriodType = "specific_days"
	PeriodCalendarMonth PeriodType = "calendar_month"
	PeriodSlidingMonth  PeriodType = "sliding_month"
)

func (p PeriodType) Valid() bool {
	switch p {
	case PeriodRange, PeriodSpecificDays, PeriodCalendarMonth, PeriodSlidingMonth:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentPrepaid  PaymentType = "prepayment"
	PaymentPostpaid PaymentType = "postpayment"
)

const (
	// WorkerQueueSize is the buffer of the in-process notification channel.
	WorkerQueueSize = 1000

	DefaultListLimit = 50
	MaxListLimit     = 500
)
