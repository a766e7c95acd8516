package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fintrack/internal/core"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// CookieName is the name of the session cookie.
const CookieName = "fintrack_session"

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, id string) (core.Session, error)
	TouchSession(ctx context.Context, id string, seen, expires time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionManager issues signed session tokens backed by server side rows.
// Every resolved request slides the expiry forward by the idle timeout.
type SessionManager struct {
	store  SessionStore
	secret []byte
	idle   time.Duration
	now    func() time.Time
}

func NewSessionManager(store SessionStore, secret string, idle time.Duration) *SessionManager {
	return &SessionManager{
		store:  store,
		secret: []byte(secret),
		idle:   idle,
		now:    time.Now,
	}
}

// IdleTimeout is how long a session survives without requests.
func (m *SessionManager) IdleTimeout() time.Duration { return m.idle }

// Create opens a session for user and returns the signed token for the cookie.
func (m *SessionManager) Create(ctx context.Context, user core.User) (string, core.Session, error) {
	now := m.now().UTC().Truncate(time.Second)

	if n, err := m.store.DeleteExpiredSessions(ctx, now); err != nil {
		slog.WarnContext(ctx, "Failed to purge expired sessions", "error", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "Purged expired sessions", "count", n)
	}

	s := core.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.idle),
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return "", core.Session{}, err
	}

	token, err := m.sign(s)
	if err != nil {
		return "", core.Session{}, err
	}
	return token, s, nil
}

func (m *SessionManager) sign(s core.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       s.ID,
		Subject:  strconv.FormatInt(s.UserID, 10),
		IssuedAt: jwt.NewNumericDate(s.CreatedAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (m *SessionManager) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.ID == "" {
		return nil, core.ErrUnauthorized
	}
	return claims, nil
}

// Resolve verifies token, enforces the idle timeout and returns the live session.
func (m *SessionManager) Resolve(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.ErrUnauthorized
	}
	claims, err := m.parse(token)
	if err != nil {
		return core.Session{}, err
	}

	s, err := m.store.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Session{}, core.ErrSessionExpired
		}
		return core.Session{}, err
	}
	if claims.Subject != strconv.FormatInt(s.UserID, 10) {
		return core.Session{}, core.ErrUnauthorized
	}

	now := m.now().UTC().Truncate(time.Second)
	if !now.Before(s.ExpiresAt) {
		if err := m.store.DeleteSession(ctx, s.ID); err != nil {
			slog.WarnContext(ctx, "Failed to delete expired session", "error", err)
		}
		return core.Session{}, core.ErrSessionExpired
	}

	s.LastSeenAt = now
	s.ExpiresAt = now.Add(m.idle)
	if err := m.store.TouchSession(ctx, s.ID, s.LastSeenAt, s.ExpiresAt); err != nil {
		return core.Session{}, err
	}
	return s, nil
}

// Revoke deletes the session behind token. Unknown or invalid tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	return m.store.DeleteSession(ctx, claims.ID)
}
