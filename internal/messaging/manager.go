package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fizzycl/partsflow/internal/models"
)

// DefaultRequestTimeout bounds a single delivery call to the gateway.
const DefaultRequestTimeout = 30 * time.Second

// ManagerOpts holds configuration for the whatsapp-manager sender.
type ManagerOpts struct {
	Host   string
	Token  string
	Client *http.Client
}

// ManagerOption configures a ManagerService.
type ManagerOption func(*ManagerOpts)

// WithManagerHost sets the base URL of the whatsapp-manager gateway.
func WithManagerHost(host string) ManagerOption {
	return func(o *ManagerOpts) { o.Host = host }
}

// WithManagerToken sets the bearer token sent on delivery calls.
func WithManagerToken(token string) ManagerOption {
	return func(o *ManagerOpts) { o.Token = token }
}

// WithManagerHTTPClient overrides the HTTP client.
func WithManagerHTTPClient(client *http.Client) ManagerOption {
	return func(o *ManagerOpts) { o.Client = client }
}

// ManagerService delivers messages through the whatsapp-manager gateway,
// which owns the provider session and renders interactive payloads.
type ManagerService struct {
	host   string
	token  string
	client *http.Client
}

// NewManagerService creates a sender for the whatsapp-manager gateway.
func NewManagerService(opts ...ManagerOption) (*ManagerService, error) {
	var cfg ManagerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewManagerService: creating manager sender", "host_set", cfg.Host != "", "token_set", cfg.Token != "")

	if cfg.Host == "" {
		return nil, fmt.Errorf("whatsapp-manager host not set")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &ManagerService{
		host:   cfg.Host,
		token:  cfg.Token,
		client: cfg.Client,
	}, nil
}

// SendMessage posts the request to the gateway's message endpoint and
// returns its delivery response.
func (s *ManagerService) SendMessage(ctx context.Context, req models.MessageRequest) (models.StandardResponse, error) {
	if len(req.To) == 0 {
		return models.StandardResponse{}, ErrNoRecipients
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return models.StandardResponse{}, fmt.Errorf("failed to marshal message request: %w", err)
	}

	url := s.host + "/message"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return models.StandardResponse{}, fmt.Errorf("failed to build delivery request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		slog.Error("ManagerService.SendMessage: delivery call failed", "error", err, "to", req.To)
		return models.StandardResponse{}, fmt.Errorf("failed to deliver message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.StandardResponse{}, fmt.Errorf("failed to read delivery response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("ManagerService.SendMessage: gateway rejected message", "status", resp.StatusCode, "to", req.To)
		return models.StandardResponse{}, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, body)
	}

	var out models.StandardResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return models.StandardResponse{}, fmt.Errorf("failed to unmarshal delivery response: %w", err)
	}
	slog.Debug("ManagerService.SendMessage: message delivered", "to", req.To, "references", len(out.References))
	return out, nil
}
