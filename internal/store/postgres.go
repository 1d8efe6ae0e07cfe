// Package store provides storage backends for request trackers.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/fizzycl/partsflow/internal/models"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateTracker(t models.Tracker) error {
	_, err := s.db.Exec(`INSERT INTO trackers (id, phone_number, timestamp) VALUES ($1, $2, $3)`,
		t.ID, t.PhoneNumber, t.Timestamp)
	if err != nil {
		slog.Error("PostgresStore CreateTracker failed", "error", err, "phone", t.PhoneNumber)
		return fmt.Errorf("failed to insert tracker %s: %w", t.ID, err)
	}
	slog.Debug("PostgresStore CreateTracker succeeded", "tracker_id", t.ID, "phone", t.PhoneNumber)
	return nil
}

func (s *PostgresStore) LatestTracker(phone string) (models.Tracker, error) {
	row := s.db.QueryRow(`SELECT id, phone_number, timestamp FROM trackers
		WHERE phone_number = $1 ORDER BY timestamp DESC, seq DESC LIMIT 1`, phone)

	var t models.Tracker
	if err := row.Scan(&t.ID, &t.PhoneNumber, &t.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return models.Tracker{}, ErrNotFound
		}
		slog.Error("PostgresStore LatestTracker failed", "error", err, "phone", phone)
		return models.Tracker{}, fmt.Errorf("failed to query latest tracker for %s: %w", phone, err)
	}
	return t, nil
}

func (s *PostgresStore) AppendStep(step models.TrackerStep) error {
	_, err := s.db.Exec(`INSERT INTO tracker_steps
		(id, tracker_id, timestamp, status, value, attached_files, message_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		step.ID, step.TrackerID, step.Timestamp, step.Status.Status(),
		step.Value, step.AttachedFiles, step.MessageReference)
	if err != nil {
		slog.Error("PostgresStore AppendStep failed", "error", err, "tracker_id", step.TrackerID, "status", step.Status)
		return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
	}
	slog.Debug("PostgresStore AppendStep succeeded", "tracker_id", step.TrackerID, "status", step.Status)
	return nil
}

// LatestStep orders by timestamp with the insertion sequence breaking ties,
// so steps appended inside the same millisecond resolve to the newest one.
func (s *PostgresStore) LatestStep(trackerID string) (models.TrackerStep, error) {
	row := s.db.QueryRow(`SELECT id, tracker_id, timestamp, status, value, attached_files, message_reference
		FROM tracker_steps WHERE tracker_id = $1 ORDER BY timestamp DESC, seq DESC LIMIT 1`, trackerID)
	return scanStepRow(row, trackerID)
}

func (s *PostgresStore) StepByState(trackerID string, state models.FlowState) (models.TrackerStep, error) {
	row := s.db.QueryRow(`SELECT id, tracker_id, timestamp, status, value, attached_files, message_reference
		FROM tracker_steps WHERE tracker_id = $1 AND status = $2 ORDER BY timestamp DESC, seq DESC LIMIT 1`,
		trackerID, state.Status())
	return scanStepRow(row, trackerID)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
