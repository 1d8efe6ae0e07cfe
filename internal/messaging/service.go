// Package messaging delivers outbound messages to users. The primary sender
// forwards requests to the whatsapp-manager gateway; a Twilio sender exists
// for deployments without a gateway.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/fizzycl/partsflow/internal/models"
)

// ErrNoRecipients is returned when a message request names no recipients.
var ErrNoRecipients = errors.New("message request has no recipients")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// SendMessage delivers one outbound message request and returns the
	// delivery response with provider references.
	SendMessage(ctx context.Context, req models.MessageRequest) (models.StandardResponse, error)
}

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. It removes all non-numeric characters and validates the
// result has at least 6 digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
