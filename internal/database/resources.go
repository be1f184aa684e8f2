package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
)

const roomColumns = `id, name, hourly_rate, daily_rate, coworking_daily_rate, coworking_weekly_rate,
	coworking_monthly_rate, is_coworking, is_active, created_at, updated_at`

// SaveRoom inserts a room, or replaces it when room.ID is set.
func (db *DB) SaveRoom(ctx context.Context, room *models.Room) error {
	now := time.Now()
	query := `INSERT INTO rooms (id, name, hourly_rate, daily_rate, coworking_daily_rate, coworking_weekly_rate,
                coworking_monthly_rate, is_coworking, is_active, created_at, updated_at)
              VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                hourly_rate = excluded.hourly_rate,
                daily_rate = excluded.daily_rate,
                coworking_daily_rate = excluded.coworking_daily_rate,
                coworking_weekly_rate = excluded.coworking_weekly_rate,
                coworking_monthly_rate = excluded.coworking_monthly_rate,
                is_coworking = excluded.is_coworking,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	result, err := db.q(ctx).ExecContext(ctx, query,
		room.ID, room.Name, room.HourlyRate,
		nullFloat(room.DailyRate), nullFloat(room.CoworkingDailyRate),
		nullFloat(room.CoworkingWeeklyRate), nullFloat(room.CoworkingMonthlyRate),
		room.IsCoworking, room.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	if room.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		room.ID = id
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	return nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	row := db.q(ctx).QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return room, nil
}

func (db *DB) GetRoomsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Room, error) {
	out := make(map[int64]*models.Room, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := db.q(ctx).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out[room.ID] = room
	}
	return out, rows.Err()
}

func (db *DB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (*models.Room, error) {
	var r models.Room
	var daily, cwDaily, cwWeekly, cwMonthly sql.NullFloat64
	err := s.Scan(&r.ID, &r.Name, &r.HourlyRate, &daily, &cwDaily, &cwWeekly, &cwMonthly,
		&r.IsCoworking, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.DailyRate = floatPtr(daily)
	r.CoworkingDailyRate = floatPtr(cwDaily)
	r.CoworkingWeeklyRate = floatPtr(cwWeekly)
	r.CoworkingMonthlyRate = floatPtr(cwMonthly)
	return &r, nil
}

// SaveWorkspace inserts a workspace, or replaces it when ws.ID is set.
func (db *DB) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	now := time.Now()
	query := `INSERT INTO workspaces (id, room_id, name, daily_rate, weekly_rate, monthly_rate, is_active, created_at)
              VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                room_id = excluded.room_id,
                name = excluded.name,
                daily_rate = excluded.daily_rate,
                weekly_rate = excluded.weekly_rate,
                monthly_rate = excluded.monthly_rate,
                is_active = excluded.is_active`
	result, err := db.q(ctx).ExecContext(ctx, query,
		ws.ID, ws.RoomID, ws.Name,
		nullFloat(ws.DailyRate), nullFloat(ws.WeeklyRate), nullFloat(ws.MonthlyRate),
		ws.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	if ws.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		ws.ID = id
		ws.CreatedAt = now
	}
	return nil
}

// GetWorkspaces loads workspaces in the order of ids. Any missing id is NotFound.
func (db *DB) GetWorkspaces(ctx context.Context, ids []int64) ([]*models.Workspace, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, room_id, name, daily_rate, weekly_rate, monthly_rate, is_active, created_at
              FROM workspaces WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := db.q(ctx).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspaces: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Workspace, len(ids))
	for rows.Next() {
		var (
			ws                     models.Workspace
			daily, weekly, monthly sql.NullFloat64
		)
		if err := rows.Scan(&ws.ID, &ws.RoomID, &ws.Name, &daily, &weekly, &monthly, &ws.IsActive, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		ws.DailyRate = floatPtr(daily)
		ws.WeeklyRate = floatPtr(weekly)
		ws.MonthlyRate = floatPtr(monthly)
		byID[ws.ID] = &ws
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}

	out := make([]*models.Workspace, 0, len(ids))
	for _, id := range ids {
		ws, ok := byID[id]
		if !ok {
			return nil, domain.NotFoundf("workspace %d", id)
		}
		out = append(out, ws)
	}
	return out, nil
}

// SaveClient inserts a client, or replaces it when c.ID is set.
func (db *DB) SaveClient(ctx context.Context, c *models.Client) error {
	query := `INSERT INTO clients (id, name, phone, email, created_at) VALUES (NULLIF(?, 0), ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, phone = excluded.phone, email = excluded.email`
	result, err := db.q(ctx).ExecContext(ctx, query, c.ID, c.Name, c.Phone, c.Email, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	if c.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		c.ID = id
	}
	return nil
}

// GetClient implements the client directory.
func (db *DB) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var c models.Client
	err := db.q(ctx).QueryRowContext(ctx, `SELECT id, name, phone, email FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if err != nil {
		return nil, notFound(err, "client", id)
	}
	return &c, nil
}
