package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
)

func (db *DB) GetSlots(ctx context.Context, bookingID int64) ([]models.Slot, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT id, booking_id, room_id, workspace_id, date, start_time, end_time, price, cancelled, created_at
         FROM booking_slots WHERE booking_id = ? ORDER BY date, start_time, workspace_id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var (
			s    models.Slot
			ws   sql.NullInt64
			date string
		)
		if err := rows.Scan(&s.ID, &s.BookingID, &s.RoomID, &ws, &date, &s.StartTime, &s.EndTime,
			&s.Price, &s.Cancelled, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		s.WorkspaceID = intPtr(ws)
		if s.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("invalid slot date %q: %w", date, err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ReplaceSlots drops every slot of the booking and writes slots in their place.
func (db *DB) ReplaceSlots(ctx context.Context, bookingID int64, slots []models.Slot) error {
	q := db.q(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM booking_slots WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to delete slots: %w", err)
	}
	now := time.Now()
	for _, s := range slots {
		_, err := q.ExecContext(ctx,
			`INSERT INTO booking_slots (booking_id, room_id, workspace_id, date, start_time, end_time, price, cancelled, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bookingID, s.RoomID, nullInt(s.WorkspaceID), formatDate(s.Date), s.StartTime, s.EndTime, s.Price, s.Cancelled, now)
		if err != nil {
			return fmt.Errorf("failed to insert slot: %w", err)
		}
	}
	return nil
}

// UpdateSlotPrices rewrites the price of each given slot of the booking.
func (db *DB) UpdateSlotPrices(ctx context.Context, bookingID int64, slots []models.Slot) error {
	q := db.q(ctx)
	for _, s := range slots {
		if _, err := q.ExecContext(ctx, `UPDATE booking_slots SET price = ? WHERE id = ? AND booking_id = ?`,
			s.Price, s.ID, bookingID); err != nil {
			return fmt.Errorf("failed to update slot %d price: %w", s.ID, err)
		}
	}
	return nil
}

// CancelSlots marks every slot of the booking cancelled. Rows are kept for audit.
func (db *DB) CancelSlots(ctx context.Context, bookingID int64) error {
	if _, err := db.q(ctx).ExecContext(ctx, `UPDATE booking_slots SET cancelled = 1 WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to cancel slots: %w", err)
	}
	return nil
}

func (db *DB) DeleteSlot(ctx context.Context, bookingID, slotID int64) error {
	result, err := db.q(ctx).ExecContext(ctx, `DELETE FROM booking_slots WHERE id = ? AND booking_id = ?`, slotID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFoundf("slot %d of booking %d", slotID, bookingID)
	}
	return nil
}

// FindWorkspaceConflicts lists live slots of other bookings holding any of
// the workspaces on any of the dates.
func (db *DB) FindWorkspaceConflicts(ctx context.Context, workspaceIDs []int64, dates []time.Time, excludeBookingID int64) ([]domain.WorkspaceConflict, error) {
	if len(workspaceIDs) == 0 || len(dates) == 0 {
		return nil, nil
	}
	args := int64Args(workspaceIDs)
	for _, d := range dates {
		args = append(args, formatDate(d))
	}
	args = append(args,
		models.StatusDraft, models.StatusPending, models.StatusConfirmed, models.StatusActive,
		excludeBookingID,
	)

	query := `SELECT b.id, b.number, s.workspace_id, COALESCE(w.name, ''), s.date
              FROM booking_slots s
              JOIN bookings b ON b.id = s.booking_id
              LEFT JOIN workspaces w ON w.id = s.workspace_id
              WHERE s.workspace_id IN (` + placeholders(len(workspaceIDs)) + `)
                AND s.date IN (` + placeholders(len(dates)) + `)
                AND s.cancelled = 0
                AND b.status IN (?, ?, ?, ?)
                AND b.id <> ?
              ORDER BY s.date, s.workspace_id, b.id`

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find workspace conflicts: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkspaceConflict
	for rows.Next() {
		var (
			c    domain.WorkspaceConflict
			date string
		)
		if err := rows.Scan(&c.BookingID, &c.BookingNumber, &c.WorkspaceID, &c.WorkspaceName, &date); err != nil {
			return nil, fmt.Errorf("failed to scan workspace conflict: %w", err)
		}
		if c.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("invalid slot date %q: %w", date, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
