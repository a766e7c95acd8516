package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "./data/fintrack.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fintrack-user", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	roleFlag := fs.String("role", string(core.RoleUser), "Role: admin or user")
	dbPath := fs.String("db", "", "Path to database file (defaults to SQLITE_DB_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	name := strings.TrimSpace(*username)
	if name == "" {
		fmt.Fprintln(stdout, "Usage: fintrack-user -user <username> [-role admin|user] [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	role := core.Role(strings.ToLower(strings.TrimSpace(*roleFlag)))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be admin or user", *roleFlag)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	path := *dbPath
	if path == "" {
		path = os.Getenv("SQLITE_DB_PATH")
	}
	if path == "" {
		path = defaultDBPath
	}

	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := repo.CreateUser(context.Background(), name, hash, role)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateUser) {
			return fmt.Errorf("user %s already exists", name)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created with role %s and ID %d\n", user.Username, user.Role, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
