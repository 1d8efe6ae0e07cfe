// Package validation gates inbound messages against the flow definition of
// the state they would enter.
//
// The message kind is classified from the event's shape, never from a tag the
// caller supplies; the textual content is then checked against the step's
// rule.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fizzycl/partsflow/internal/flow"
	"github.com/fizzycl/partsflow/internal/models"
)

// ErrInvalidVehicleID is returned when a VIN fails its check digit or the
// content is neither a VIN nor a license plate.
var ErrInvalidVehicleID = errors.New("vehicle identifier is not valid")

// KindMismatchError reports an inbound message whose shape does not satisfy
// the step's required input kind.
type KindMismatchError struct {
	Want models.MessageKind
	Got  models.MessageKind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("message kind %s does not match required kind %s", e.Got, e.Want)
}

// RuleMismatchError reports content rejected by the step's pattern rule.
type RuleMismatchError struct {
	Content string
}

func (e *RuleMismatchError) Error() string {
	return fmt.Sprintf("message content %q does not match the required pattern", e.Content)
}

// UnsupportedMessageError reports a provider message type the engine cannot
// classify.
type UnsupportedMessageError struct {
	Type string
}

func (e *UnsupportedMessageError) Error() string {
	return fmt.Sprintf("unsupported message type %q", e.Type)
}

// Classify determines the message kind from the message shape.
func Classify(msg *models.Message) (models.MessageKind, error) {
	switch msg.Type {
	case "text":
		return models.KindPlainText, nil
	case "image":
		return models.KindPlainTextAndImage, nil
	case "interactive":
		if msg.Interactive == nil {
			return "", &UnsupportedMessageError{Type: msg.Type}
		}
		if msg.Interactive.ButtonReply != nil {
			return models.KindButtonSelection, nil
		}
		if msg.Interactive.ListReply != nil {
			return models.KindListSelection, nil
		}
		return "", &UnsupportedMessageError{Type: msg.Type}
	case "button":
		return models.KindButtonSelection, nil
	default:
		return "", &UnsupportedMessageError{Type: msg.Type}
	}
}

// Content extracts the textual content of a message: the body for plain
// text, the selection id for interactive replies, the caption for images.
func Content(msg *models.Message) string {
	switch {
	case msg.Text != nil:
		return msg.Text.Body
	case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
		return msg.Interactive.ButtonReply.ID
	case msg.Interactive != nil && msg.Interactive.ListReply != nil:
		return msg.Interactive.ListReply.ID
	case msg.Image != nil:
		return msg.Image.Caption
	case msg.Button != nil:
		return msg.Button.Text
	default:
		return ""
	}
}

// kindSatisfies reports whether a classified kind satisfies a required one.
// A step that accepts text with an optional image is satisfied by either a
// plain text or an image message.
func kindSatisfies(required, got models.MessageKind) bool {
	if required == got {
		return true
	}
	return required == models.KindPlainTextAndImage && got == models.KindPlainText
}

// Validate checks the event's first message against the definition of the
// step it would enter and returns the captured content on success.
func Validate(def flow.StepDefinition, ev *models.Event) (string, error) {
	msg, err := ev.FirstMessage()
	if err != nil {
		return "", err
	}

	kind, err := Classify(msg)
	if err != nil {
		slog.Warn("validation.Validate: unclassifiable message", "state", def.State, "error", err)
		return "", err
	}

	if def.RequiredInput != models.KindNone && !kindSatisfies(def.RequiredInput, kind) {
		slog.Debug("validation.Validate: kind mismatch", "state", def.State, "want", def.RequiredInput, "got", kind)
		return "", &KindMismatchError{Want: def.RequiredInput, Got: kind}
	}

	content := strings.TrimSpace(Content(msg))

	switch def.Rule.Kind {
	case flow.RulePattern:
		if !def.Rule.Pattern.MatchString(content) {
			slog.Debug("validation.Validate: rule mismatch", "state", def.State)
			return "", &RuleMismatchError{Content: content}
		}
	case flow.RuleVehicleID:
		if !ValidVehicleID(content) {
			slog.Debug("validation.Validate: vehicle id rejected", "state", def.State)
			return "", ErrInvalidVehicleID
		}
	}

	return content, nil
}
