// Package store provides storage backends for request trackers.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fizzycl/partsflow/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options. The DSN
// is a file path; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateTracker(t models.Tracker) error {
	_, err := s.db.Exec(`INSERT INTO trackers (id, phone_number, timestamp) VALUES (?, ?, ?)`,
		t.ID, t.PhoneNumber, t.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore CreateTracker failed", "error", err, "phone", t.PhoneNumber)
		return fmt.Errorf("failed to insert tracker %s: %w", t.ID, err)
	}
	slog.Debug("SQLiteStore CreateTracker succeeded", "tracker_id", t.ID, "phone", t.PhoneNumber)
	return nil
}

func (s *SQLiteStore) LatestTracker(phone string) (models.Tracker, error) {
	row := s.db.QueryRow(`SELECT id, phone_number, timestamp FROM trackers
		WHERE phone_number = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`, phone)

	var t models.Tracker
	if err := row.Scan(&t.ID, &t.PhoneNumber, &t.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return models.Tracker{}, ErrNotFound
		}
		slog.Error("SQLiteStore LatestTracker failed", "error", err, "phone", phone)
		return models.Tracker{}, fmt.Errorf("failed to query latest tracker for %s: %w", phone, err)
	}
	return t, nil
}

func (s *SQLiteStore) AppendStep(step models.TrackerStep) error {
	_, err := s.db.Exec(`INSERT INTO tracker_steps
		(id, tracker_id, timestamp, status, value, attached_files, message_reference)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.TrackerID, step.Timestamp, step.Status.Status(),
		step.Value, step.AttachedFiles, step.MessageReference)
	if err != nil {
		slog.Error("SQLiteStore AppendStep failed", "error", err, "tracker_id", step.TrackerID, "status", step.Status)
		return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
	}
	slog.Debug("SQLiteStore AppendStep succeeded", "tracker_id", step.TrackerID, "status", step.Status)
	return nil
}

// LatestStep orders by timestamp with rowid breaking ties, so steps appended
// inside the same millisecond resolve to the newest one.
func (s *SQLiteStore) LatestStep(trackerID string) (models.TrackerStep, error) {
	row := s.db.QueryRow(`SELECT id, tracker_id, timestamp, status, value, attached_files, message_reference
		FROM tracker_steps WHERE tracker_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`, trackerID)
	return scanStepRow(row, trackerID)
}

func (s *SQLiteStore) StepByState(trackerID string, state models.FlowState) (models.TrackerStep, error) {
	row := s.db.QueryRow(`SELECT id, tracker_id, timestamp, status, value, attached_files, message_reference
		FROM tracker_steps WHERE tracker_id = ? AND status = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		trackerID, state.Status())
	return scanStepRow(row, trackerID)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
