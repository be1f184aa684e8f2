package models

import "time"

// Room is a bookable space. Coworking rooms are subdivided into workspaces.
type Room struct {
	ID                   int64     `json:"id" yaml:"id"`
	Name                 string    `json:"name" yaml:"name"`
	HourlyRate           float64   `json:"hourly_rate" yaml:"hourly_rate"`
	DailyRate            *float64  `json:"daily_rate,omitempty" yaml:"daily_rate"`
	CoworkingDailyRate   *float64  `json:"coworking_daily_rate,omitempty" yaml:"coworking_daily_rate"`
	CoworkingWeeklyRate  *float64  `json:"coworking_weekly_rate,omitempty" yaml:"coworking_weekly_rate"`
	CoworkingMonthlyRate *float64  `json:"coworking_monthly_rate,omitempty" yaml:"coworking_monthly_rate"`
	IsCoworking          bool      `json:"is_coworking" yaml:"is_coworking"`
	IsActive             bool      `json:"is_active" yaml:"is_active"`
	CreatedAt            time.Time `json:"created_at" yaml:"-"`
	UpdatedAt            time.Time `json:"updated_at" yaml:"-"`
}

// Workspace is a desk inside a coworking room.
type Workspace struct {
	ID          int64     `json:"id" yaml:"id"`
	RoomID      int64     `json:"room_id" yaml:"room_id"`
	Name        string    `json:"name" yaml:"name"`
	DailyRate   *float64  `json:"daily_rate,omitempty" yaml:"daily_rate"`
	WeeklyRate  *float64  `json:"weekly_rate,omitempty" yaml:"weekly_rate"`
	MonthlyRate *float64  `json:"monthly_rate,omitempty" yaml:"monthly_rate"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

type Client struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone" yaml:"phone"`
	Email string `json:"email" yaml:"email"`
}

// Rate returns a pointer to v, for literal rate fields.
func Rate(v float64) *float64 { return &v }
