package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sendRequest is the Open Cloud notification body. The payload type is
// fixed to MOMENT; the asset id travels as the message id.
type sendRequest struct {
	Source  sendSource  `json:"source"`
	Payload sendPayload `json:"payload"`
}

type sendSource struct {
	Universe string `json:"universe"`
}

type sendPayload struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
}

// RobloxProvider delivers experience notifications through the Roblox
// Open Cloud API. The base URL is injected from config so tests can
// point to a local stub.
type RobloxProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewRobloxProvider(baseURL string, timeout time.Duration) *RobloxProvider {
	return &RobloxProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the notification to the per-user Open Cloud endpoint,
// authenticating with the x-api-key header. Any non-2xx response is a
// delivery failure.
func (p *RobloxProvider) Send(ctx context.Context, n Notification, apiKey string) error {
	body, err := json.Marshal(sendRequest{
		Source:  sendSource{Universe: "universes/" + n.UniverseID},
		Payload: sendPayload{MessageID: n.AssetID, Type: "MOMENT"},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/cloud/v2/users/%d/notifications", p.baseURL, n.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification API responded %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that RobloxProvider implements Provider
var _ Provider = (*RobloxProvider)(nil)
