package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const reminderColumns = `id, user_id, title, description, due_date, is_completed, created_at`

func scanReminder(row rowScanner) (core.Reminder, error) {
	var (
		rm        core.Reminder
		due       sql.NullString
		createdAt string
	)
	if err := row.Scan(&rm.ID, &rm.UserID, &rm.Title, &rm.Description, &due, &rm.IsCompleted, &createdAt); err != nil {
		return core.Reminder{}, err
	}
	rm.DueDate = timePtr(due)
	rm.CreatedAt = parseTime(createdAt)
	return rm, nil
}

func (r *SQLiteRepository) CreateReminder(ctx context.Context, rm core.Reminder) (core.Reminder, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, title, description, due_date, is_completed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rm.UserID, rm.Title, rm.Description, nullTime(rm.DueDate), rm.IsCompleted, formatTime(rm.CreatedAt))
	if err != nil {
		return core.Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	if rm.ID, err = res.LastInsertId(); err != nil {
		return core.Reminder{}, fmt.Errorf("reminder id: %w", err)
	}
	return rm, nil
}

// ListReminders orders by due date with undated reminders last.
func (r *SQLiteRepository) ListReminders(ctx context.Context, userID int64) ([]core.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ?
		 ORDER BY due_date IS NULL, due_date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	reminders := []core.Reminder{}
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rm)
	}
	return reminders, rows.Err()
}

func (r *SQLiteRepository) GetReminder(ctx context.Context, userID, id int64) (core.Reminder, error) {
	rm, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Reminder{}, notFound(err, "reminder")
	}
	return rm, nil
}

func (r *SQLiteRepository) UpdateReminder(ctx context.Context, rm core.Reminder) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET title = ?, description = ?, due_date = ?, is_completed = ? WHERE id = ? AND user_id = ?`,
		rm.Title, rm.Description, nullTime(rm.DueDate), rm.IsCompleted, rm.ID, rm.UserID)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return requireAffected(res, "reminder")
}

func (r *SQLiteRepository) DeleteReminder(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return requireAffected(res, "reminder")
}
