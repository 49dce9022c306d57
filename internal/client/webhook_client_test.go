package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var _ Provider = (*WebhookClient)(nil)

type capturedRequest struct {
	Method string
	Header http.Header
	Body   []byte
}

func newGateway(t *testing.T, status int, body string) (*WebhookClient, *capturedRequest) {
	t.Helper()

	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Header = r.Header.Clone()
		got.Body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewWebhookClient(WebhookConfig{URL: srv.URL, AuthKey: "secret", Timeout: time.Second}), got
}

func TestWebhookClient_Send_Accepted(t *testing.T) {
	t.Parallel()

	c, got := newGateway(t, http.StatusAccepted, `{"message":"Accepted","messageId":"gw-42"}`)

	id, err := c.Send(context.Background(), "+16502530000", "Hi Ann")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id != "gw-42" {
		t.Fatalf("expected provider id %q, got %q", "gw-42", id)
	}

	if got.Method != http.MethodPost {
		t.Fatalf("expected POST, got %q", got.Method)
	}
	if ct := got.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if key := got.Header.Get("X-Auth-Key"); key != "secret" {
		t.Fatalf("expected auth key header, got %q", key)
	}

	var req gatewayRequest
	if err := json.Unmarshal(got.Body, &req); err != nil {
		t.Fatalf("decode request: %v body=%q", err, string(got.Body))
	}
	if req.PhoneNumber != "+16502530000" || req.Message != "Hi Ann" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestWebhookClient_Send_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"gateway error field", http.StatusBadRequest, `{"error":"number blocked"}`, "Gateway error: number blocked"},
		{"plain error body", http.StatusServiceUnavailable, "try later", `Gateway error: status 503 body="try later"`},
		{"invalid json", http.StatusAccepted, "THIS IS NOT JSON", "failed to decode json"},
		{"missing id", http.StatusOK, `{"message":"Accepted"}`, "missing messageId"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newGateway(t, tc.status, tc.body)

			_, err := c.Send(context.Background(), "+16502530000", "hi")
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWebhookClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewWebhookClient(WebhookConfig{URL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, "+16502530000", "hi")
	if err == nil || !strings.Contains(err.Error(), "gateway unreachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
