package models

import "errors"

// Error variables shared across the engine's entry points.
var (
	// ErrNoActiveConversation is returned when an inbound delivery has no
	// tracker; the whatsapp-manager is expected to create one first for a
	// start keyword.
	ErrNoActiveConversation = errors.New("no active conversation for phone number")
	// ErrNoStepHistory is returned when a tracker exists without any step,
	// which should never happen for a well-formed history.
	ErrNoStepHistory = errors.New("tracker has no step history")
	// ErrUnsupportedOrigin is returned for a MessageLog whose origin system
	// the engine does not serve.
	ErrUnsupportedOrigin = errors.New("origin system not supported")
)
