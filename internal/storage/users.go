package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string, role core.Role) (core.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, string(role), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrDuplicateUser
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return core.User{ID: id, Username: username, PasswordHash: passwordHash, Role: role, CreatedAt: now}, nil
}

const userColumns = `id, username, password_hash, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u         core.User
		role      string
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &createdAt); err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username))
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}
