package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const bookingColumns = `b.id, b.number, b.rental_type, b.room_id, b.client_id, COALESCE(c.name, ''), b.period_type,
	b.start_date, b.end_date, b.start_time, b.end_time, b.hourly_slots, b.base_price, b.adjusted_price,
	b.adjustment_reason, b.quantity, b.total_price, b.payment_type, b.status, b.comment, b.extended_from_id,
	b.created_at, b.updated_at, b.version`

// CreateBooking assigns the next sequence number and persists the booking
// together with its workspace links, selected days and slots. Call it inside
// WithTx so the rows land atomically.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking, slots []models.Slot) error {
	hourly, err := encodeHourly(booking.HourlySlots)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `INSERT INTO bookings (
				number, rental_type, room_id, client_id, period_type, start_date, end_date,
				start_time, end_time, hourly_slots, base_price, adjusted_price, adjustment_reason,
				quantity, total_price, payment_type, status, comment, extended_from_id,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`

	var result sql.Result
	for attempt := 0; ; attempt++ {
		number, err := db.nextBookingNumber(ctx)
		if err != nil {
			return err
		}
		result, err = db.q(ctx).ExecContext(ctx, query,
			number, booking.RentalType, nullInt(booking.RoomID), booking.ClientID, booking.PeriodType,
			formatDate(booking.StartDate), formatDate(booking.EndDate), booking.StartTime, booking.EndTime,
			hourly, booking.BasePrice, nullFloat(booking.AdjustedPrice), booking.AdjustmentReason,
			booking.Quantity, booking.TotalPrice, booking.PaymentType, booking.Status, booking.Comment,
			nullInt(booking.ExtendedFromID), now, now,
		)
		if err == nil {
			booking.Number = number
			break
		}
		if isUniqueViolation(err) && attempt+1 < db.numberRetry {
			db.logger.Warn().Str("number", number).Msg("booking number taken, retrying")
			continue
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	if err := db.writeAssociations(ctx, booking); err != nil {
		return err
	}
	if err := db.ReplaceSlots(ctx, booking.ID, slots); err != nil {
		return err
	}
	booking.Slots, err = db.GetSlots(ctx, booking.ID)
	return err
}

// nextBookingNumber bumps the global counter. Numbers are zero-padded and
// never reused, even after deletes.
func (db *DB) nextBookingNumber(ctx context.Context) (string, error) {
	n, err := db.NextSequence(ctx, "booking_number")
	if err != nil {
		return "", fmt.Errorf("failed to allocate booking number: %w", err)
	}
	return fmt.Sprintf("%0*d", db.numberWidth, n), nil
}

// NextSequence increments the named counter and returns its new value.
func (db *DB) NextSequence(ctx context.Context, name string) (int64, error) {
	var n int64
	err := db.q(ctx).QueryRowContext(ctx,
		`UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value`, name).Scan(&n)
	if err != nil {
		return 0, notFound(err, "sequence "+name, 0)
	}
	return n, nil
}

func (db *DB) writeAssociations(ctx context.Context, booking *models.Booking) error {
	q := db.q(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM booking_workspaces WHERE booking_id = ?`, booking.ID); err != nil {
		return fmt.Errorf("failed to clear booking workspaces: %w", err)
	}
	for _, wsID := range booking.WorkspaceIDs {
		if _, err := q.ExecContext(ctx, `INSERT INTO booking_workspaces (booking_id, workspace_id) VALUES (?, ?)`,
			booking.ID, wsID); err != nil {
			return fmt.Errorf("failed to link workspace: %w", err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM booking_days WHERE booking_id = ?`, booking.ID); err != nil {
		return fmt.Errorf("failed to clear booking days: %w", err)
	}
	for _, day := range booking.SelectedDays {
		if _, err := q.ExecContext(ctx, `INSERT INTO booking_days (booking_id, day) VALUES (?, ?)`,
			booking.ID, formatDate(day)); err != nil {
			return fmt.Errorf("failed to save booking day: %w", err)
		}
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b LEFT JOIN clients c ON c.id = b.client_id WHERE b.id = ?`
	booking, err := scanBooking(db.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	if err := db.loadAssociations(ctx, booking); err != nil {
		return nil, err
	}
	booking.Slots, err = db.GetSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (db *DB) loadAssociations(ctx context.Context, booking *models.Booking) error {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT workspace_id FROM booking_workspaces WHERE booking_id = ? ORDER BY workspace_id`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load booking workspaces: %w", err)
	}
	booking.WorkspaceIDs = nil
	for rows.Next() {
		var wsID int64
		if err := rows.Scan(&wsID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan booking workspace: %w", err)
		}
		booking.WorkspaceIDs = append(booking.WorkspaceIDs, wsID)
	}
	rows.Close()

	rows, err = db.q(ctx).QueryContext(ctx, `SELECT day FROM booking_days WHERE booking_id = ? ORDER BY day`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load booking days: %w", err)
	}
	defer rows.Close()
	booking.SelectedDays = nil
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("failed to scan booking day: %w", err)
		}
		day, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid booking day %q: %w", s, err)
		}
		booking.SelectedDays = append(booking.SelectedDays, day)
	}
	return rows.Err()
}

// ListBookings returns one page of bookings matching filter and the total match count.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, int, error) {
	where := bookingFilter(filter)

	countSQL, countArgs, err := sq.Select("COUNT(*)").
		From("bookings b").
		LeftJoin("clients c ON c.id = b.client_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := db.q(ctx).QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	if limit > models.MaxListLimit {
		limit = models.MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listSQL, args, err := sq.Select(bookingColumns).
		From("bookings b").
		LeftJoin("clients c ON c.id = b.client_id").
		Where(where).
		OrderBy("b.start_date DESC", "b.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	rows.Close()

	for _, b := range bookings {
		if err := db.loadAssociations(ctx, b); err != nil {
			return nil, 0, err
		}
	}
	return bookings, total, nil
}

func bookingFilter(f models.BookingFilter) sq.And {
	where := sq.And{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, sq.Eq{"b.status": statuses})
	}
	if f.RentalType != "" {
		where = append(where, sq.Eq{"b.rental_type": string(f.RentalType)})
	}
	if f.ClientID != 0 {
		where = append(where, sq.Eq{"b.client_id": f.ClientID})
	}
	if f.RoomID != 0 {
		where = append(where, sq.Or{
			sq.Eq{"b.room_id": f.RoomID},
			sq.Expr(`b.id IN (SELECT bw.booking_id FROM booking_workspaces bw
				JOIN workspaces w ON w.id = bw.workspace_id WHERE w.room_id = ?)`, f.RoomID),
		})
	}
	if f.WorkspaceID != 0 {
		where = append(where, sq.Expr(`b.id IN (SELECT booking_id FROM booking_workspaces WHERE workspace_id = ?)`, f.WorkspaceID))
	}
	if f.From != nil {
		where = append(where, sq.GtOrEq{"b.end_date": formatDate(*f.From)})
	}
	if f.To != nil {
		where = append(where, sq.LtOrEq{"b.start_date": formatDate(*f.To)})
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + q + "%"
		where = append(where, sq.Or{
			sq.Like{"b.number": pattern},
			sq.Like{"c.name": pattern},
		})
	}
	return where
}

// UpdateBooking writes the booking's editable fields with an optimistic
// version check and rewrites its workspace and day links.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	hourly, err := encodeHourly(booking.HourlySlots)
	if err != nil {
		return err
	}
	now := time.Now()
	query := `UPDATE bookings SET
				rental_type = ?, room_id = ?, client_id = ?, period_type = ?, start_date = ?, end_date = ?,
				start_time = ?, end_time = ?, hourly_slots = ?, base_price = ?, adjusted_price = ?,
				adjustment_reason = ?, quantity = ?, total_price = ?, payment_type = ?, status = ?, comment = ?,
				updated_at = ?, version = version + 1
			  WHERE id = ? AND version = ?`
	result, err := db.q(ctx).ExecContext(ctx, query,
		booking.RentalType, nullInt(booking.RoomID), booking.ClientID, booking.PeriodType,
		formatDate(booking.StartDate), formatDate(booking.EndDate), booking.StartTime, booking.EndTime,
		hourly, booking.BasePrice, nullFloat(booking.AdjustedPrice), booking.AdjustmentReason,
		booking.Quantity, booking.TotalPrice, booking.PaymentType, booking.Status, booking.Comment,
		now, booking.ID, booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := checkVersioned(result); err != nil {
		return err
	}
	booking.Version++
	booking.UpdatedAt = now
	return db.writeAssociations(ctx, booking)
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, version int64, status models.Status) error {
	result, err := db.q(ctx).ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`,
		status, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return checkVersioned(result)
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.q(ctx).ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFoundf("booking %d", id)
	}
	return nil
}

func checkVersioned(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func scanBooking(s rowScanner) (*models.Booking, error) {
	var (
		b                    models.Booking
		roomID, extendedFrom sql.NullInt64
		adjusted             sql.NullFloat64
		startDate, endDate   string
		hourly               string
	)
	err := s.Scan(&b.ID, &b.Number, &b.RentalType, &roomID, &b.ClientID, &b.ClientName, &b.PeriodType,
		&startDate, &endDate, &b.StartTime, &b.EndTime, &hourly, &b.BasePrice, &adjusted,
		&b.AdjustmentReason, &b.Quantity, &b.TotalPrice, &b.PaymentType, &b.Status, &b.Comment, &extendedFrom,
		&b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}
	b.RoomID = intPtr(roomID)
	b.ExtendedFromID = intPtr(extendedFrom)
	b.AdjustedPrice = floatPtr(adjusted)
	if b.StartDate, err = parseDate(startDate); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	if b.EndDate, err = parseDate(endDate); err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if hourly != "" {
		if err := json.Unmarshal([]byte(hourly), &b.HourlySlots); err != nil {
			return nil, fmt.Errorf("invalid hourly slots: %w", err)
		}
	}
	return &b, nil
}

func encodeHourly(slots []models.TimeRange) (string, error) {
	if len(slots) == 0 {
		return "", nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode hourly slots: %w", err)
	}
	return string(data), nil
}
