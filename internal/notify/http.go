package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// Defaults for the outbound-call API.
const (
	DefaultURL     = "https://api.cartesia.ai/twilio/call/outbound"
	DefaultVersion = "2025-04-16"
)

// ErrCallRejected is returned when the call API answers with a non-2xx status.
var ErrCallRejected = errors.New("outbound call rejected")

// HTTPConfig configures an HTTPNotifier.
type HTTPConfig struct {
	URL     string `validate:"required,url"`
	APIKey  string `validate:"required"`
	AgentID string `validate:"required"`
	Version string
	Timeout time.Duration
}

var validate = validator.New()

// HTTPNotifier places outbound calls through a voice-agent HTTP API.
type HTTPNotifier struct {
	cfg         HTTPConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewHTTPNotifier validates cfg and creates a notifier.
// Calls are limited to one per ten seconds.
func NewHTTPNotifier(cfg HTTPConfig, logger *slog.Logger) (*HTTPNotifier, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid notifier config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPNotifier{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
		logger:      logger,
	}, nil
}

type callRequest struct {
	TargetNumbers []string     `json:"target_numbers"`
	AgentID       string       `json:"agent_id"`
	Metadata      callMetadata `json:"metadata"`
}

type callMetadata struct {
	BooksContext string `json:"books_context"`
}

// Notify implements Notifier.
func (n *HTTPNotifier) Notify(ctx context.Context, call Call) error {
	if call.PhoneNumber == "" {
		return errors.New("no phone number to call")
	}
	if err := n.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(callRequest{
		TargetNumbers: []string{call.PhoneNumber},
		AgentID:       n.cfg.AgentID,
		Metadata:      callMetadata{BooksContext: call.BooksContext},
	})
	if err != nil {
		return fmt.Errorf("encoding call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", n.cfg.APIKey)
	req.Header.Set("Cartesia-Version", n.cfg.Version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("placing call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrCallRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}

	n.logger.Info("call placed", "books", len(call.Books), "status", resp.StatusCode)
	return nil
}
