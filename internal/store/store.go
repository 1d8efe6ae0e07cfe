// Package store provides storage backends for request trackers and their
// step history.
//
// Three implementations exist: an in-memory store for tests, an SQLite store
// for single-node deployments, and a PostgreSQL store.
package store

import (
	"errors"
	"strings"
	"sync"

	"github.com/fizzycl/partsflow/internal/models"
)

// ErrNotFound is returned when no tracker or step matches a lookup.
var ErrNotFound = errors.New("record not found")

// TrackerStore persists trackers and their append-only step history.
type TrackerStore interface {
	// CreateTracker persists a new tracker.
	CreateTracker(t models.Tracker) error
	// LatestTracker returns the most recent tracker of a phone number, by
	// timestamp. ErrNotFound when the number has no tracker.
	LatestTracker(phone string) (models.Tracker, error)
	// AppendStep persists a new step of a tracker.
	AppendStep(s models.TrackerStep) error
	// LatestStep returns the most recent step of a tracker: highest
	// timestamp, append order breaking ties. ErrNotFound when the tracker
	// has no steps.
	LatestStep(trackerID string) (models.TrackerStep, error)
	// StepByState returns the most recent step of a tracker with the given
	// status, with the same ordering as LatestStep. ErrNotFound when no such
	// step exists.
	StepByState(trackerID string, state models.FlowState) (models.TrackerStep, error)
	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures a store constructor.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps trackers and steps in process memory. Intended for
// tests and local development.
type InMemoryStore struct {
	mu       sync.Mutex
	trackers []models.Tracker
	steps    []models.TrackerStep
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateTracker(t models.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers = append(s.trackers, t)
	return nil
}

func (s *InMemoryStore) LatestTracker(phone string) (models.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best models.Tracker
	found := false
	for _, t := range s.trackers {
		if t.PhoneNumber == phone && (!found || t.Timestamp >= best.Timestamp) {
			best = t
			found = true
		}
	}
	if !found {
		return models.Tracker{}, ErrNotFound
	}
	return best, nil
}

func (s *InMemoryStore) AppendStep(step models.TrackerStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	return nil
}

func (s *InMemoryStore) LatestStep(trackerID string) (models.TrackerStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestStepLocked(trackerID, func(models.TrackerStep) bool { return true })
}

func (s *InMemoryStore) StepByState(trackerID string, state models.FlowState) (models.TrackerStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestStepLocked(trackerID, func(st models.TrackerStep) bool { return st.Status == state })
}

// latestStepLocked scans in append order, so of two steps sharing a
// timestamp the one appended later wins.
func (s *InMemoryStore) latestStepLocked(trackerID string, match func(models.TrackerStep) bool) (models.TrackerStep, error) {
	var best models.TrackerStep
	found := false
	for _, st := range s.steps {
		if st.TrackerID == trackerID && match(st) && (!found || st.Timestamp >= best.Timestamp) {
			best = st
			found = true
		}
	}
	if !found {
		return models.TrackerStep{}, ErrNotFound
	}
	return best, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
