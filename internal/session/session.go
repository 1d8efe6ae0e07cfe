// Package session tracks the conversation mode of each phone number. The
// mode decides which downstream system handles the conversation; completing
// a request hands the number back to the default menu.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	backend "github.com/redis/go-redis/v9"
)

// DefaultMode is the main menu mode a phone number returns to once a request
// completes or expires.
const DefaultMode = 100

const modeField = "mode"

// Modes reads and resets conversation modes stored by the whatsapp-manager.
type Modes struct {
	client *backend.Client
	prefix string
}

// Option configures a Modes store.
type Option func(*Modes)

// WithPrefix sets the key prefix for mode hashes.
func WithPrefix(prefix string) Option {
	return func(m *Modes) {
		m.prefix = prefix
	}
}

// New creates a mode store with its own client.
func New(address, password string, db int, opts ...Option) *Modes {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a mode store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Modes {
	m := &Modes{
		client: client,
		prefix: "selected-mode:",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Modes) key(phone string) string {
	return m.prefix + phone
}

// Get returns the mode of a phone number. A number with no stored mode is in
// DefaultMode.
func (m *Modes) Get(ctx context.Context, phone string) (int, error) {
	val, err := m.client.HGet(ctx, m.key(phone), modeField).Result()
	if err != nil {
		if err == backend.Nil {
			return DefaultMode, nil
		}
		return 0, fmt.Errorf("failed to read mode for %s: %w", phone, err)
	}
	mode, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("malformed mode %q for %s: %w", val, phone, err)
	}
	return mode, nil
}

// Reset returns the phone number to DefaultMode.
func (m *Modes) Reset(ctx context.Context, phone string) error {
	if err := m.client.HSet(ctx, m.key(phone), modeField, DefaultMode).Err(); err != nil {
		return fmt.Errorf("failed to reset mode for %s: %w", phone, err)
	}
	slog.Debug("Modes.Reset: mode reset", "phone", phone, "mode", DefaultMode)
	return nil
}

// Close closes the underlying client.
func (m *Modes) Close() error {
	return m.client.Close()
}
