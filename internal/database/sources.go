package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/timeslot"
)

// Sources returns the four reservation sources backed by this store, in the
// order the conflict checker consults them.
func (db *DB) Sources() []domain.CandidateSource {
	return []domain.CandidateSource{
		ClassSessionSource{db: db},
		RentalSlotSource{db: db},
		EventSource{db: db},
		ManualHoldSource{db: db},
	}
}

type ClassSessionSource struct{ db *DB }

func (ClassSessionSource) Kind() models.SourceKind { return models.SourceClassSession }

func (s ClassSessionSource) Candidates(ctx context.Context, roomID int64, date time.Time) ([]models.ConflictCandidate, error) {
	return s.query(ctx, `WHERE room_id = ? AND date = ?`, roomID, formatDate(date))
}

// TeacherCandidates lists the teacher's sessions on date in any room.
func (s ClassSessionSource) TeacherCandidates(ctx context.Context, teacherID int64, date time.Time) ([]models.ConflictCandidate, error) {
	return s.query(ctx, `WHERE teacher_id = ? AND date = ?`, teacherID, formatDate(date))
}

func (s ClassSessionSource) query(ctx context.Context, where string, args ...any) ([]models.ConflictCandidate, error) {
	rows, err := s.db.q(ctx).QueryContext(ctx,
		`SELECT id, room_id, teacher_id, title, date, start_time, end_time, cancelled FROM class_sessions `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query class sessions: %w", err)
	}
	defer rows.Close()

	var out []models.ConflictCandidate
	for rows.Next() {
		var (
			c                models.ConflictCandidate
			teacher          sql.NullInt64
			date, start, end string
		)
		if err := rows.Scan(&c.ID, &c.RoomID, &teacher, &c.Label, &date, &start, &end, &c.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan class session: %w", err)
		}
		c.Source = models.SourceClassSession
		c.TeacherID = intPtr(teacher)
		if err := fillWindow(&c, date, start, end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RentalSlotSource projects booking slots. Workspace slots count against
// their room, and slots of cancelled bookings are reported as cancelled.
type RentalSlotSource struct{ db *DB }

func (RentalSlotSource) Kind() models.SourceKind { return models.SourceRentalSlot }

func (s RentalSlotSource) Candidates(ctx context.Context, roomID int64, date time.Time) ([]models.ConflictCandidate, error) {
	rows, err := s.db.q(ctx).QueryContext(ctx,
		`SELECT s.id, s.booking_id, s.room_id, s.workspace_id, b.number, s.date, s.start_time, s.end_time,
                s.cancelled OR b.status = ?
         FROM booking_slots s JOIN bookings b ON b.id = s.booking_id
         WHERE s.room_id = ? AND s.date = ?`,
		models.StatusCancelled, roomID, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query rental slots: %w", err)
	}
	defer rows.Close()

	var out []models.ConflictCandidate
	for rows.Next() {
		var (
			c             models.ConflictCandidate
			ws            sql.NullInt64
			d, start, end string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.RoomID, &ws, &c.Label, &d, &start, &end, &c.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan rental slot: %w", err)
		}
		c.Source = models.SourceRentalSlot
		c.WorkspaceID = intPtr(ws)
		if err := fillWindow(&c, d, start, end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type EventSource struct{ db *DB }

func (EventSource) Kind() models.SourceKind { return models.SourceEvent }

func (s EventSource) Candidates(ctx context.Context, roomID int64, date time.Time) ([]models.ConflictCandidate, error) {
	return s.db.simpleCandidates(ctx, models.SourceEvent,
		`SELECT id, room_id, title, date, start_time, end_time, cancelled FROM events WHERE room_id = ? AND date = ?`,
		roomID, date)
}

type ManualHoldSource struct{ db *DB }

func (ManualHoldSource) Kind() models.SourceKind { return models.SourceManualHold }

func (s ManualHoldSource) Candidates(ctx context.Context, roomID int64, date time.Time) ([]models.ConflictCandidate, error) {
	return s.db.simpleCandidates(ctx, models.SourceManualHold,
		`SELECT id, room_id, reason, date, start_time, end_time, NOT active FROM manual_holds WHERE room_id = ? AND date = ?`,
		roomID, date)
}

func (db *DB) simpleCandidates(ctx context.Context, kind models.SourceKind, query string, roomID int64, date time.Time) ([]models.ConflictCandidate, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, roomID, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []models.ConflictCandidate
	for rows.Next() {
		var (
			c             models.ConflictCandidate
			d, start, end string
		)
		if err := rows.Scan(&c.ID, &c.RoomID, &c.Label, &d, &start, &end, &c.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		c.Source = kind
		if err := fillWindow(&c, d, start, end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func fillWindow(c *models.ConflictCandidate, date, start, end string) error {
	var err error
	if c.Date, err = parseDate(date); err != nil {
		return fmt.Errorf("invalid %s date %q: %w", c.Source, date, err)
	}
	r, err := timeslot.ParseRange(start, end)
	if err != nil {
		return fmt.Errorf("invalid %s %d window: %w", c.Source, c.ID, err)
	}
	c.Start, c.End = r.Start, r.End
	return nil
}

func (db *DB) CreateClassSession(ctx context.Context, s *models.ClassSession) error {
	if _, err := timeslot.ParseRange(s.StartTime, s.EndTime); err != nil {
		return domain.Validationf("class session: %v", err)
	}
	result, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO class_sessions (room_id, teacher_id, title, date, start_time, end_time, cancelled) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RoomID, nullInt(s.TeacherID), s.Title, formatDate(s.Date), s.StartTime, s.EndTime, s.Cancelled)
	if err != nil {
		return fmt.Errorf("failed to create class session: %w", err)
	}
	s.ID, err = result.LastInsertId()
	return err
}

func (db *DB) SetClassSessionCancelled(ctx context.Context, id int64, cancelled bool) error {
	_, err := db.q(ctx).ExecContext(ctx, `UPDATE class_sessions SET cancelled = ? WHERE id = ?`, cancelled, id)
	if err != nil {
		return fmt.Errorf("failed to update class session: %w", err)
	}
	return nil
}

func (db *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	if _, err := timeslot.ParseRange(e.StartTime, e.EndTime); err != nil {
		return domain.Validationf("event: %v", err)
	}
	result, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO events (room_id, title, date, start_time, end_time, cancelled) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RoomID, e.Title, formatDate(e.Date), e.StartTime, e.EndTime, e.Cancelled)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	e.ID, err = result.LastInsertId()
	return err
}

func (db *DB) CreateManualHold(ctx context.Context, h *models.ManualHold) error {
	if _, err := timeslot.ParseRange(h.StartTime, h.EndTime); err != nil {
		return domain.Validationf("manual hold: %v", err)
	}
	result, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO manual_holds (room_id, reason, date, start_time, end_time, active) VALUES (?, ?, ?, ?, ?, ?)`,
		h.RoomID, h.Reason, formatDate(h.Date), h.StartTime, h.EndTime, h.Active)
	if err != nil {
		return fmt.Errorf("failed to create manual hold: %w", err)
	}
	h.ID, err = result.LastInsertId()
	return err
}
