// Package telephony wraps the Twilio SDK for the outbound engagement
// call and its webhook callbacks, in the same thin-wrapper-plus-nil-safe-
// service shape as pkg/slack.
package telephony

import (
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client is a thin wrapper around the Twilio SDK's Voice Calls resource.
type Client struct {
	api        *twilio.RestClient
	fromNumber string
	webhookURL string
	logger     *slog.Logger
}

// NewClient creates a Twilio-backed Client. webhookBaseURL is the
// publicly reachable origin the Twilio webhook handler is mounted at
// (e.g. "https://pipeline.example.com/twilio"); voice/status paths are
// appended to it.
func NewClient(accountSID, authToken, fromNumber, webhookBaseURL string) *Client {
	return &Client{
		api: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
		webhookURL: webhookBaseURL,
		logger:     slog.Default().With("component", "telephony-client"),
	}
}

// PlaceCall initiates an outbound voice call to "to", pointed at the
// webhook's voice endpoint for the opening turn and its status
// endpoint for call-state callbacks. Returns the provider call_sid.
func (c *Client) PlaceCall(to string) (string, error) {
	params := &twilioapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetUrl(c.webhookURL + "/voice")
	params.SetMethod("POST")
	params.SetStatusCallback(c.webhookURL + "/status")
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})

	resp, err := c.api.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio create call: empty sid in response")
	}
	return *resp.Sid, nil
}
