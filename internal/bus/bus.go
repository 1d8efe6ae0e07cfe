// Package bus connects the engine to the other conversation systems through
// Redis: notification publishing and the inbound event cache written by the
// whatsapp-manager.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/fizzycl/partsflow/internal/models"
)

// ErrEventNotFound is returned when the inbound event cache holds no entry
// for a register id.
var ErrEventNotFound = errors.New("inbound event not found")

// RedisBus publishes message logs and reads cached inbound events.
type RedisBus struct {
	client        *backend.Client
	channelPrefix string
	inboxPrefix   string
}

// Option configures a RedisBus.
type Option func(*RedisBus)

// WithChannelPrefix sets the prefix of the notification channels.
func WithChannelPrefix(prefix string) Option {
	return func(b *RedisBus) {
		b.channelPrefix = prefix
	}
}

// WithInboxPrefix sets the prefix of the inbound event cache keys.
func WithInboxPrefix(prefix string) Option {
	return func(b *RedisBus) {
		b.inboxPrefix = prefix
	}
}

// New creates a bus with its own client.
func New(address, password string, db int, opts ...Option) *RedisBus {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a bus from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *RedisBus {
	b := &RedisBus{
		client:        client,
		channelPrefix: "whatsapp-notification:",
		inboxPrefix:   "incoming-messages:",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends a message log on the notification channel of its phone
// number, where the routing layer and the other systems pick it up.
func (b *RedisBus) Publish(ctx context.Context, log models.MessageLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal message log: %w", err)
	}
	channel := b.channelPrefix + log.PhoneNumber
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	slog.Debug("RedisBus.Publish: message log published", "channel", channel, "register_id", log.RegisterID, "origin", log.Origin)
	return nil
}

// FetchEvent reads the cached provider event of an inbound message. The
// whatsapp-manager stores each webhook payload as a JSON document keyed by
// phone number and register id.
func (b *RedisBus) FetchEvent(ctx context.Context, phone, registerID string) (*models.Event, error) {
	key := fmt.Sprintf("%s%s:%s", b.inboxPrefix, phone, registerID)
	raw, err := b.client.JSONGet(ctx, key, ".").Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to read event %s: %w", key, err)
	}
	if raw == "" {
		return nil, ErrEventNotFound
	}

	var ev models.Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", key, err)
	}
	return &ev, nil
}

// Close closes the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
