package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, role, created_at, last_seen_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.Role),
		formatTime(s.CreatedAt), formatTime(s.LastSeenAt), formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (core.Session, error) {
	var (
		s                            core.Session
		role                         string
		createdAt, lastSeen, expires string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, u.username, s.role, s.created_at, s.last_seen_at, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.Username, &role, &createdAt, &lastSeen, &expires)
	if err != nil {
		return core.Session{}, notFound(err, "session")
	}
	s.Role = core.Role(role)
	s.CreatedAt = parseTime(createdAt)
	s.LastSeenAt = parseTime(lastSeen)
	s.ExpiresAt = parseTime(expires)
	return s, nil
}

// TouchSession slides the idle expiry of a session.
func (r *SQLiteRepository) TouchSession(ctx context.Context, id string, seen, expires time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ?, expires_at = ? WHERE id = ?`,
		formatTime(seen), formatTime(expires), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return requireAffected(res, "session")
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is before now.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
