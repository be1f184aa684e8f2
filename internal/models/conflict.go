package models

import "time"

// SourceKind names one of the reservation sources a slot can collide with.
type SourceKind string

const (
	SourceClassSession SourceKind = "class_session"
	SourceRentalSlot   SourceKind = "rental_slot"
	SourceEvent        SourceKind = "event"
	SourceManualHold   SourceKind = "manual_hold"
)

// ConflictCandidate is the common read-only projection of a reservation.
// Start and End are minutes since midnight.
type ConflictCandidate struct {
	Source      SourceKind
	ID          int64
	OwnerID     int64
	RoomID      int64
	WorkspaceID *int64
	TeacherID   *int64
	Date        time.Time
	Start       int
	End         int
	Cancelled   bool
	Label       string
}

// ClassSession is a scheduled lesson held in a room.
type ClassSession struct {
	ID        int64     `json:"id" yaml:"id"`
	RoomID    int64     `json:"room_id" yaml:"room_id"`
	TeacherID *int64    `json:"teacher_id,omitempty" yaml:"teacher_id"`
	Title     string    `json:"title" yaml:"title"`
	Date      time.Time `json:"date" yaml:"-"`
	StartTime string    `json:"start_time" yaml:"start_time"`
	EndTime   string    `json:"end_time" yaml:"end_time"`
	Cancelled bool      `json:"cancelled" yaml:"cancelled"`
}

// Event is a one-off happening that occupies a room.
type Event struct {
	ID        int64     `json:"id" yaml:"id"`
	RoomID    int64     `json:"room_id" yaml:"room_id"`
	Title     string    `json:"title" yaml:"title"`
	Date      time.Time `json:"date" yaml:"-"`
	StartTime string    `json:"start_time" yaml:"start_time"`
	EndTime   string    `json:"end_time" yaml:"end_time"`
	Cancelled bool      `json:"cancelled" yaml:"cancelled"`
}

// ManualHold blocks a room without any booking behind it.
type ManualHold struct {
	ID        int64     `json:"id" yaml:"id"`
	RoomID    int64     `json:"room_id" yaml:"room_id"`
	Reason    string    `json:"reason" yaml:"reason"`
	Date      time.Time `json:"date" yaml:"-"`
	StartTime string    `json:"start_time" yaml:"start_time"`
	EndTime   string    `json:"end_time" yaml:"end_time"`
	Active    bool      `json:"active" yaml:"active"`
}

// Occupant is one reservation shown in an occupancy map.
type Occupant struct {
	Source      SourceKind `json:"source"`
	ID          int64      `json:"id"`
	Label       string     `json:"label"`
	WorkspaceID *int64     `json:"workspace_id,omitempty"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
}

// DayOccupancy maps an hour of the day (0-23) to the reservations touching it.
type DayOccupancy map[int][]Occupant

// Occupancy maps "YYYY-MM-DD" to that day's occupancy.
type Occupancy map[string]DayOccupancy
