package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/fizzycl/partsflow/internal/models"
)

// TwilioOpts holds configuration for the Twilio sender.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioOpts)

func WithTwilioAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

func WithTwilioAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithTwilioFrom sets the sender number in "whatsapp:+1234567890" format.
func WithTwilioFrom(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// messageCreator is the slice of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioService delivers messages directly through the Twilio API. Twilio's
// Go SDK has no interactive WhatsApp payloads, so lists and buttons are
// rendered as numbered text.
type TwilioService struct {
	api  messageCreator
	from string
}

// NewTwilioService creates a Twilio-backed sender.
func NewTwilioService(opts ...TwilioOption) (*TwilioService, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewTwilioService: creating Twilio sender",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{api: client.Api, from: cfg.From}, nil
}

// SendMessage renders the request as text and sends it to every recipient.
func (s *TwilioService) SendMessage(ctx context.Context, req models.MessageRequest) (models.StandardResponse, error) {
	if len(req.To) == 0 {
		return models.StandardResponse{}, ErrNoRecipients
	}

	body := RenderText(req)
	var resp models.StandardResponse

	for _, to := range req.To {
		canonical, err := ValidateAndCanonicalizeRecipient(to)
		if err != nil {
			slog.Error("TwilioService.SendMessage: invalid recipient", "error", err, "to", to)
			return resp, err
		}

		params := &twilioApi.CreateMessageParams{}
		params.SetTo("whatsapp:+" + canonical)
		params.SetFrom(s.from)
		params.SetBody(body)

		msg, err := s.api.CreateMessage(params)
		if err != nil {
			slog.Error("TwilioService.SendMessage: delivery failed", "error", err, "to", canonical)
			return resp, fmt.Errorf("failed to send message to %s: %w", canonical, err)
		}
		if msg.Sid != nil {
			resp.AddReference("twilio", *msg.Sid)
		}
		slog.Debug("TwilioService.SendMessage: message sent", "to", canonical)
	}
	return resp, nil
}

// RenderText flattens a message request into plain text. Interactive rows
// become numbered lines the user can answer by name.
func RenderText(req models.MessageRequest) string {
	var b strings.Builder
	b.WriteString(req.Content.Body)

	writeChoices := func(title string, choices []models.Choice) {
		if title != "" {
			b.WriteString("\n\n" + title + ":")
		}
		for i, c := range choices {
			fmt.Fprintf(&b, "\n%d. %s", i+1, c.Title)
		}
	}

	switch req.MessageType {
	case models.MessageTypeList:
		if req.Content.List != nil {
			writeChoices(req.Content.List.Title, req.Content.List.Choices)
		}
	case models.MessageTypeButton:
		writeChoices("", req.Content.Buttons)
	}
	return b.String()
}
