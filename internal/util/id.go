package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for trackers and steps: a v4 UUID
// with the hyphens stripped, 32 hex characters.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
