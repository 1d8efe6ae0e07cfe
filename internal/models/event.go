package models

import "errors"

// ErrNoMessage is returned when a provider event carries no message entry.
var ErrNoMessage = errors.New("event contains no message")

// Event is the provider webhook payload cached by the whatsapp-manager. The
// engine only reads the first message of the first entry; the rest of the
// tree is carried through for auditability.
type Event struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level entry of a provider event.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field change inside an entry.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the messages and statuses of a change.
type ChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         ChangeMetadata `json:"metadata"`
	Contacts         []Contact      `json:"contacts,omitempty"`
	Messages         []Message      `json:"messages,omitempty"`
	Statuses         []Status       `json:"statuses,omitempty"`
}

// ChangeMetadata identifies the receiving phone number.
type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to an event.
type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile carries the sender display name.
type Profile struct {
	Name string `json:"name"`
}

// Status is a delivery status update (ignored by the engine).
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Message is one user message inside a provider event.
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Button      *Button      `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Image       *Image       `json:"image,omitempty"`
}

// Text is the plain text payload of a message.
type Text struct {
	Body string `json:"body"`
}

// Button is a template button reply.
type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Interactive is a reply to an interactive list or button message.
type Interactive struct {
	Type        string `json:"type"`
	ListReply   *Reply `json:"list_reply,omitempty"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
}

// Reply is the selected entry of an interactive reply.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Image is an attached image with an optional caption.
type Image struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// FirstMessage returns the first message of the event, or ErrNoMessage when
// the event holds none (e.g. a pure status update).
func (e *Event) FirstMessage() (*Message, error) {
	if e == nil || len(e.Entry) == 0 || len(e.Entry[0].Changes) == 0 {
		return nil, ErrNoMessage
	}
	msgs := e.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return nil, ErrNoMessage
	}
	return &msgs[0], nil
}
