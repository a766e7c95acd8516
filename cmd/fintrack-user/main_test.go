package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CreatesAdmin(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	err := run([]string{"-user", "root", "-password", "secret1", "-role", "admin", "-db", dbPath}, new(bytes.Buffer), stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "User root created with role admin")

	repo, err := storage.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	u, err := repo.GetUserByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, u.Role)
	assert.True(t, auth.CheckPassword("secret1", u.PasswordHash))
}

func TestRun_PromptsForPassword(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")
	stdout := new(bytes.Buffer)

	err := run([]string{"-user", "carol", "-db", dbPath}, strings.NewReader("piped-secret\n"), stdout, new(bytes.Buffer))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Password: ")
	assert.Contains(t, stdout.String(), "created with role user")
}

func TestRun_DuplicateUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")
	args := []string{"-user", "dave", "-password", "secret1", "-db", dbPath}

	require.NoError(t, run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer)))

	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_InvalidInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing user", []string{"-password", "secret1"}, "missing required flags: user"},
		{"bad role", []string{"-user", "eve", "-password", "secret1", "-role", "owner"}, "invalid role"},
		{"short password", []string{"-user", "eve", "-password", "abc", "-db", dbPath}, "at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
