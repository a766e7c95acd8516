package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

const noteColumns = `id, user_id, title, content, color, created_at, updated_at`

func scanNote(row rowScanner) (core.Note, error) {
	var (
		n                    core.Note
		createdAt, updatedAt string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Color, &createdAt, &updatedAt); err != nil {
		return core.Note{}, err
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return n, nil
}

func (r *SQLiteRepository) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, title, content, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Content, n.Color, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return core.Note{}, fmt.Errorf("insert note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return core.Note{}, fmt.Errorf("note id: %w", err)
	}
	return n, nil
}

// ListNotes returns the owner's notes, most recently updated first.
func (r *SQLiteRepository) ListNotes(ctx context.Context, userID int64) ([]core.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	notes := []core.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *SQLiteRepository) GetNote(ctx context.Context, userID, id int64) (core.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Note{}, notFound(err, "note")
	}
	return n, nil
}

func (r *SQLiteRepository) UpdateNote(ctx context.Context, n core.Note) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, color = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		n.Title, n.Content, n.Color, formatTime(n.UpdatedAt), n.ID, n.UserID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return requireAffected(res, "note")
}

func (r *SQLiteRepository) DeleteNote(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return requireAffected(res, "note")
}
