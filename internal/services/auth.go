package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// AuthService registers users and opens and closes their sessions.
type AuthService struct {
	storage  *storage.SQLiteRepository
	sessions *auth.SessionManager
	keys     auth.RegistrationKeys
}

func NewAuthService(storage *storage.SQLiteRepository, sessions *auth.SessionManager, keys auth.RegistrationKeys) *AuthService {
	return &AuthService{storage: storage, sessions: sessions, keys: keys}
}

// Register creates a user whose role is decided by the registration key and
// logs them in. The returned token goes into the session cookie.
func (s *AuthService) Register(ctx context.Context, username, password, key string) (core.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || key == "" {
		return core.User{}, "", fmt.Errorf("%w: username, password and registration_key are required", core.ErrMissingField)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return core.User{}, "", fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	role, err := s.keys.RoleFor(key)
	if err != nil {
		slog.WarnContext(ctx, "Registration with invalid key", "username", username)
		return core.User{}, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, "", err
	}
	user, err := s.storage.CreateUser(ctx, username, hash, role)
	if err != nil {
		return core.User{}, "", err
	}

	token, _, err := s.sessions.Create(ctx, user)
	if err != nil {
		return core.User{}, "", fmt.Errorf("open session: %w", err)
	}

	slog.InfoContext(ctx, "User registered",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role)

	return user, token, nil
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (core.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, "", fmt.Errorf("%w: username and password are required", core.ErrMissingField)
	}

	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, "", core.ErrInvalidCredentials
		}
		return core.User{}, "", err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		slog.WarnContext(ctx, "Failed login", "username", username)
		return core.User{}, "", core.ErrInvalidCredentials
	}

	token, _, err := s.sessions.Create(ctx, user)
	if err != nil {
		return core.User{}, "", fmt.Errorf("open session: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Logout ends the session behind token. It never fails for unknown tokens.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a session token to the actor it runs as.
func (s *AuthService) Authenticate(ctx context.Context, token string) (core.Actor, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return core.Actor{}, err
	}
	return sess.Actor(), nil
}

// CookieMaxAge is the cookie lifetime in seconds, matching the server side expiry.
func (s *AuthService) CookieMaxAge() int {
	return int(s.sessions.IdleTimeout().Seconds())
}
