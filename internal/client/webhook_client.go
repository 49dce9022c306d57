package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type WebhookConfig struct {
	URL     string
	AuthKey string
	Timeout time.Duration
}

// WebhookClient posts messages to a generic JSON SMS gateway. The gateway
// answers 2xx with {"messageId": "..."} and anything else on failure.
type WebhookClient struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookClient(cfg WebhookConfig) *WebhookClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type gatewayRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (c *WebhookClient) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(gatewayRequest{PhoneNumber: to, Message: body})
	if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthKey != "" {
		req.Header.Set("X-Auth-Key", c.cfg.AuthKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway unreachable: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	text := strings.TrimSpace(string(raw))

	var gr gatewayResponse
	decodeErr := json.Unmarshal(raw, &gr)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if decodeErr == nil && gr.Error != "" {
			return "", fmt.Errorf("Gateway error: %s", gr.Error)
		}
		return "", fmt.Errorf("Gateway error: status %d body=%q", resp.StatusCode, text)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("unexpected error: failed to decode json: %w body=%q", decodeErr, text)
	}
	if gr.MessageID == "" {
		return "", fmt.Errorf("unexpected error: missing messageId in response body=%q", text)
	}
	return gr.MessageID, nil
}
