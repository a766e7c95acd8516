package auth

import (
	"crypto/subtle"

	"fintrack/internal/core"
)

// RegistrationKeys maps the two configured secrets to roles.
type RegistrationKeys struct {
	Admin string
	User  string
}

// RoleFor returns the role granted by key, or core.ErrInvalidSecret.
func (k RegistrationKeys) RoleFor(key string) (core.Role, error) {
	if key == "" {
		return "", core.ErrInvalidSecret
	}
	if k.Admin != "" && subtle.ConstantTimeCompare([]byte(key), []byte(k.Admin)) == 1 {
		return core.RoleAdmin, nil
	}
	if k.User != "" && subtle.ConstantTimeCompare([]byte(key), []byte(k.User)) == 1 {
		return core.RoleUser, nil
	}
	return "", core.ErrInvalidSecret
}
