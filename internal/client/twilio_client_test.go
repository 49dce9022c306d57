package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var _ Provider = (*TwilioClient)(nil)

func TestTwilioClient_Send_Success(t *testing.T) {
	t.Parallel()

	var (
		gotPath  string
		gotUser  string
		gotPass  string
		gotTo    string
		gotFrom  string
		gotBody  string
		gotCB    string
		gotCType string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		gotCType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		gotCB = r.PostForm.Get("StatusCallback")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{
		AccountSID:        "AC1",
		AuthToken:         "tok",
		FromNumber:        "+15550001111",
		BaseURL:           srv.URL + "/",
		StatusCallbackURL: "https://example.com/v1/webhooks/provider/status",
	})

	sid, err := c.Send(context.Background(), "+16502530000", "hello there")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if sid != "SM123" {
		t.Fatalf("expected sid SM123, got %q", sid)
	}
	if gotPath != "/2010-04-01/Accounts/AC1/Messages.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "AC1" || gotPass != "tok" {
		t.Fatalf("unexpected basic auth %q/%q", gotUser, gotPass)
	}
	if gotCType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", gotCType)
	}
	if gotTo != "+16502530000" || gotFrom != "+15550001111" || gotBody != "hello there" {
		t.Fatalf("unexpected form to=%q from=%q body=%q", gotTo, gotFrom, gotBody)
	}
	if gotCB == "" {
		t.Fatalf("expected StatusCallback to be sent")
	}
}

func TestTwilioClient_Send_APIErrorIsReported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC1", AuthToken: "tok", BaseURL: srv.URL})

	_, err := c.Send(context.Background(), "bogus", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if err.Error() != "Twilio error: The 'To' number is not a valid phone number." {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestTwilioClient_Send_NonJSONErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC1", BaseURL: srv.URL})

	_, err := c.Send(context.Background(), "+16502530000", "hi")
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTwilioClient_Send_MissingSID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC1", BaseURL: srv.URL})

	_, err := c.Send(context.Background(), "+16502530000", "hi")
	if err == nil || !strings.Contains(err.Error(), "missing sid") {
		t.Fatalf("expected missing sid error, got %v", err)
	}
}

func TestTwilioClient_Send_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC1", BaseURL: url})

	_, err := c.Send(context.Background(), "+16502530000", "hi")
	if err == nil || !strings.HasPrefix(err.Error(), "unexpected error") {
		t.Fatalf("expected transport error, got %v", err)
	}
}
