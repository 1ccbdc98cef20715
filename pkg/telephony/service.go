package telephony

import (
	"log/slog"

	"github.com/navigo-fleet/pipeline/pkg/config"
)

// Service places engagement calls. Nil-safe: Enabled reports false and
// PlaceCall is never reached when Twilio isn't configured — callers
// treat that as a "skipped" outcome, not an error (spec.md §4.9).
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a Service from Twilio configuration. Returns a
// Service whose Enabled() is false if cfg carries no credentials.
func NewService(cfg config.Twilio) *Service {
	if !cfg.Enabled() {
		return &Service{logger: slog.Default().With("component", "telephony-service")}
	}
	return &Service{
		client: NewClient(cfg.AccountSID, cfg.AuthToken, cfg.FromNumber, cfg.WebhookBaseURL),
		logger: slog.Default().With("component", "telephony-service"),
	}
}

// NewServiceWithClient builds a Service around a pre-constructed
// Client, for tests that stub the Twilio transport.
func NewServiceWithClient(client *Client) *Service {
	return &Service{client: client, logger: slog.Default().With("component", "telephony-service")}
}

// Enabled reports whether this Service can place calls.
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// PlaceCall initiates an outbound call. Callers must check Enabled()
// first; PlaceCall on a disabled Service returns an error.
func (s *Service) PlaceCall(to string) (string, error) {
	if !s.Enabled() {
		return "", errDisabled
	}
	return s.client.PlaceCall(to)
}
