// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/weather-bot/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUserNotFound is returned when no record exists for a user ID
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user registration persistence
type UserRepository interface {
	// UpsertUser creates or updates a user and always marks it registered
	UpsertUser(user entities.User) error
	// IsRegistered reports whether the user has a registered record
	IsRegistered(userID int64) (bool, error)
	GetUser(userID int64) (entities.User, error)
	CountRegistered() (int, error)
	Close() error
}

// SQLiteUserRepository implements UserRepository using SQLite
type SQLiteUserRepository struct {
	db     *sql.DB
	DBPath string
	logger *slog.Logger
}

// NewSQLiteUserRepository opens the database and creates the users table
func NewSQLiteUserRepository(dbPath string, logger *slog.Logger) (*SQLiteUserRepository, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	logger.Info("opening database", "driver", "sqlite", "path", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized within the process
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		username TEXT,
		is_registered INTEGER NOT NULL DEFAULT 0,
		registered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteUserRepository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteUserRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// UpsertUser stores the user, overwriting the display name of an existing record
func (r *SQLiteUserRepository) UpsertUser(user entities.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users(user_id, username, is_registered, registered_at)
		VALUES(?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		username=excluded.username,
		is_registered=1`,
		user.ID, user.DisplayName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}

	r.logger.Debug("user upserted", "user_id", user.ID)
	return nil
}

// IsRegistered returns false when no record exists
func (r *SQLiteUserRepository) IsRegistered(userID int64) (bool, error) {
	var registered bool
	err := r.db.QueryRow("SELECT is_registered FROM users WHERE user_id = ?", userID).Scan(&registered)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check registration for %d: %w", userID, err)
	}
	return registered, nil
}

// GetUser retrieves a single user record
func (r *SQLiteUserRepository) GetUser(userID int64) (entities.User, error) {
	var (
		user     entities.User
		username sql.NullString
	)
	err := r.db.QueryRow(
		"SELECT user_id, username, is_registered, registered_at FROM users WHERE user_id = ?", userID,
	).Scan(&user.ID, &username, &user.Registered, &user.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	user.DisplayName = username.String
	return user, nil
}

// CountRegistered returns the number of registered users
func (r *SQLiteUserRepository) CountRegistered() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users WHERE is_registered = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
