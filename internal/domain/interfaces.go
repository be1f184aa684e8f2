package domain

import (
	"context"
	"time"

	"roombook/internal/models"
)

// CandidateSource is one reservation source the conflict checker reads from.
type CandidateSource interface {
	Kind() models.SourceKind
	Candidates(ctx context.Context, roomID int64, date time.Time) ([]models.ConflictCandidate, error)
}

// TeacherScheduleSource is implemented by sources that know who teaches a session.
type TeacherScheduleSource interface {
	TeacherCandidates(ctx context.Context, teacherID int64, date time.Time) ([]models.ConflictCandidate, error)
}

// Repository is the booking store. Methods called with a context produced by
// WithTx run inside that transaction.
type Repository interface {
	WithTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error

	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetWorkspaces(ctx context.Context, ids []int64) ([]*models.Workspace, error)
	GetRoomsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Room, error)

	CreateBooking(ctx context.Context, booking *models.Booking, slots []models.Slot) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, int, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, version int64, status models.Status) error
	DeleteBooking(ctx context.Context, id int64) error

	GetSlots(ctx context.Context, bookingID int64) ([]models.Slot, error)
	ReplaceSlots(ctx context.Context, bookingID int64, slots []models.Slot) error
	UpdateSlotPrices(ctx context.Context, bookingID int64, slots []models.Slot) error
	CancelSlots(ctx context.Context, bookingID int64) error
	DeleteSlot(ctx context.Context, bookingID, slotID int64) error

	FindWorkspaceConflicts(ctx context.Context, workspaceIDs []int64, dates []time.Time, excludeBookingID int64) ([]WorkspaceConflict, error)
}

// WorkspaceConflict is another live booking that holds a requested workspace on a requested date.
type WorkspaceConflict struct {
	BookingID     int64
	BookingNumber string
	WorkspaceID   int64
	WorkspaceName string
	Date          time.Time
}

// Invoicing is the outbound invoice collaborator.
type Invoicing interface {
	CreateInvoice(ctx context.Context, clientID int64, items []models.InvoiceItem, bookingID *int64) (*models.InvoiceHandle, error)
	UpdateInvoiceLineItem(ctx context.Context, invoiceID int64, amounts models.LineAmounts) error
	InvoicesForBooking(ctx context.Context, bookingID int64) ([]*models.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID int64) error
	MarkPaid(ctx context.Context, invoiceID int64) (*models.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID int64, amount float64) (*models.Invoice, error)
}

// ClientDirectory is the read-only client lookup.
type ClientDirectory interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OccupancyCache stores per-room, per-date occupancy maps.
type OccupancyCache interface {
	GetDay(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, bool, error)
	SetDay(ctx context.Context, roomID int64, date time.Time, day models.DayOccupancy) error
	InvalidateDays(ctx context.Context, roomID int64, dates []time.Time) error
}

// OccupancyInvalidator drops cached occupancy after a write commits.
type OccupancyInvalidator interface {
	Invalidate(ctx context.Context, roomID int64, dates []time.Time)
}

// Notifier delivers one lifecycle notification to the outside world.
type Notifier interface {
	Notify(ctx context.Context, task *models.NotificationTask) error
}

type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, eventType string, bookingID int64, payload []byte) error
}
