package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const eventColumns = `id, user_id, title, description, start_time, end_time, color, created_at`

func scanEvent(row rowScanner) (core.CalendarEvent, error) {
	var (
		e                core.CalendarEvent
		start, createdAt string
		end              sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &start, &end, &e.Color, &createdAt); err != nil {
		return core.CalendarEvent{}, err
	}
	e.StartTime = parseTime(start)
	e.EndTime = timePtr(end)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func (r *SQLiteRepository) CreateEvent(ctx context.Context, e core.CalendarEvent) (core.CalendarEvent, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_events (user_id, title, description, start_time, end_time, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Title, e.Description, formatTime(e.StartTime), nullTime(e.EndTime), e.Color, formatTime(e.CreatedAt))
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("insert calendar event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.CalendarEvent{}, fmt.Errorf("calendar event id: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, userID int64) ([]core.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE user_id = ? ORDER BY start_time ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	events := []core.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteRepository) GetEvent(ctx context.Context, userID, id int64) (core.CalendarEvent, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.CalendarEvent{}, notFound(err, "calendar event")
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateEvent(ctx context.Context, e core.CalendarEvent) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calendar_events SET title = ?, description = ?, start_time = ?, end_time = ?, color = ?
		 WHERE id = ? AND user_id = ?`,
		e.Title, e.Description, formatTime(e.StartTime), nullTime(e.EndTime), e.Color, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return requireAffected(res, "calendar event")
}

func (r *SQLiteRepository) DeleteEvent(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return requireAffected(res, "calendar event")
}
