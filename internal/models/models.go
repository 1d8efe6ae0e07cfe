// Package models defines the core data structures for PartsFlow.
//
// It includes the inbound/outbound message envelopes, the provider webhook
// event shape, and the tracker records shared across modules.
package models

import "fmt"

// System identifiers used in MessageLog routing.
const (
	// SystemWhatsAppManager is the whatsapp-manager gateway that owns the
	// provider connection and mode selection.
	SystemWhatsAppManager = "1"
	// SystemPartsFlow is this engine.
	SystemPartsFlow = "3"
	// SystemPartClassification is the downstream system notified when a
	// request completes.
	SystemPartClassification = "5"
)

// PartsFlowSystemID is the numeric system id carried on outbound messages.
const PartsFlowSystemID = 3

// Origin values for MessageLog entries.
const (
	OriginIncoming = "INCOMING"
	OriginOutgoing = "OUTGOING"
)

// MessageLog is the envelope exchanged between systems for every delivery.
// RegisterID points at the provider event that caused the delivery.
type MessageLog struct {
	Timestamp          string   `json:"timestamp"`
	DestinationSystems []string `json:"destination_systems"`
	OriginSystem       string   `json:"origin_system"`
	PhoneNumber        string   `json:"phone_number"`
	Origin             string   `json:"origin"`
	RegisterID         string   `json:"register_id"`
}

// ModifiedReference identifies a record committed while handling a delivery.
type ModifiedReference struct {
	System    string `json:"system"`
	Reference string `json:"reference"`
}

// StandardResponse is the envelope returned by both engine entry points.
// Success responses omit Errors; error responses still carry any references
// already committed.
type StandardResponse struct {
	References []ModifiedReference `json:"references"`
	Errors     []string            `json:"errors,omitempty"`
}

// AddReference records a committed reference on the response.
func (r *StandardResponse) AddReference(system, reference string) {
	r.References = append(r.References, ModifiedReference{System: system, Reference: reference})
}

// AddError records a delivery error on the response.
func (r *StandardResponse) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// MessageKind classifies an inbound message by its shape.
type MessageKind string

const (
	// KindNone marks steps that require no user input.
	KindNone MessageKind = ""
	// KindPlainText is a plain text message.
	KindPlainText MessageKind = "plain_text"
	// KindPlainTextAndImage is a message carrying an image (with an
	// optional caption).
	KindPlainTextAndImage MessageKind = "plain_text_and_image"
	// KindListSelection is a reply to an interactive list.
	KindListSelection MessageKind = "list_selection"
	// KindButtonSelection is a reply to an interactive button.
	KindButtonSelection MessageKind = "button_selection"
)

// Choice is one selectable entry of a list or button message.
type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListMessage is the list payload of an interactive outbound message.
type ListMessage struct {
	Title   string   `json:"title"`
	Choices []Choice `json:"choices"`
}

// MessageContent is the body of an outbound message. Exactly one of the
// optional payloads is set depending on MessageRequest.MessageType.
type MessageContent struct {
	Body    string       `json:"body,omitempty"`
	List    *ListMessage `json:"list,omitempty"`
	Buttons []Choice     `json:"buttons,omitempty"`
}

// Message type discriminators for MessageRequest.
const (
	MessageTypeText   = "text"
	MessageTypeList   = "list"
	MessageTypeButton = "button"
)

// MessageRequest is the outbound message payload handed to the sender.
// The engine fully owns its shape; delivery belongs to the sender.
type MessageRequest struct {
	SystemID    int            `json:"system_id"`
	To          []string       `json:"to"`
	MessageType string         `json:"message_type"`
	Content     MessageContent `json:"content"`
}

// Clone returns a deep copy of the request so templates can be filled in
// without mutating the flow table.
func (m MessageRequest) Clone() MessageRequest {
	out := m
	out.To = append([]string(nil), m.To...)
	if m.Content.List != nil {
		list := *m.Content.List
		list.Choices = append([]Choice(nil), m.Content.List.Choices...)
		out.Content.List = &list
	}
	out.Content.Buttons = append([]Choice(nil), m.Content.Buttons...)
	return out
}

// Tracker is one conversation attempt for a phone number. Trackers are never
// mutated; a restart creates a new one and the old history simply ages out.
type Tracker struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Timestamp   int64  `json:"timestamp"`
}

// Reference returns the external reference for a tracker record.
func (t Tracker) Reference() string {
	return fmt.Sprintf("whatsapp-request:%s", t.ID)
}

// TrackerStep is one immutable transition in a tracker's history. The most
// recent step by Timestamp defines the conversation's current state.
type TrackerStep struct {
	ID               string    `json:"id"`
	TrackerID        string    `json:"tracker_id"`
	Timestamp        int64     `json:"timestamp"`
	Status           FlowState `json:"status"`
	Value            string    `json:"value"`
	AttachedFiles    string    `json:"attached_files"`
	MessageReference string    `json:"message_reference"`
}

// Reference returns the external reference for a step record.
func (s TrackerStep) Reference() string {
	return fmt.Sprintf("whatsapp-workflow:%s", s.ID)
}
