package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the booking core. Wrap them with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("resource already reserved")
	ErrInvariant  = errors.New("invariant violation")

	ErrConcurrentModification = fmt.Errorf("%w: booking was modified concurrently", ErrConflict)
)

// ConflictInfo describes one colliding reservation.
type ConflictInfo struct {
	Source        string `json:"source"`
	ID            int64  `json:"id"`
	RoomID        int64  `json:"room_id,omitempty"`
	WorkspaceID   int64  `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
	BookingID     int64  `json:"booking_id,omitempty"`
	BookingNumber string `json:"booking_number,omitempty"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Label         string `json:"label,omitempty"`
	Message       string `json:"message"`
}

// ConflictError carries every collision found. It matches ErrConflict.
type ConflictError struct {
	Conflicts []ConflictInfo
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrConflict.Error()
	}
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return ErrConflict.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError returns nil when there is nothing to report.
func NewConflictError(conflicts []ConflictInfo) error {
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{Conflicts: conflicts}
}

// Conflicts extracts the structured detail of a conflict error, if any.
func Conflicts(err error) []ConflictInfo {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Conflicts
	}
	return nil
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
