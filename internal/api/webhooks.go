package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

type webhookTriggerRequest struct {
	LeadID    int64          `json:"lead_id" validate:"required,gt=0"`
	Variables map[string]any `json:"variables"`
}

type webhookTriggerResponse struct {
	Status        string       `json:"status"`
	MessageID     int64        `json:"message_id"`
	MessageStatus model.Status `json:"message_status"`
}

// WebhookTrigger fires the WEBHOOK trigger named by the path key. The key
// itself authorizes the call.
func (h *Handler) WebhookTrigger(w http.ResponseWriter, r *http.Request) {
	var req webhookTriggerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.matcher.FireWebhook(r.Context(), r.PathValue("webhook_key"), req.LeadID, req.Variables)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, webhookTriggerResponse{
		Status:        "accepted",
		MessageID:     msg.ID,
		MessageStatus: msg.Status,
	})
}

type statusCallbackJSON struct {
	ProviderMessageID string `json:"provider_message_id"`
	ProviderStatus    string `json:"provider_status"`
	ErrorCode         string `json:"error_code"`
	ErrorMessage      string `json:"error_message"`
}

// StatusCallback takes provider delivery reports as Twilio form posts or
// JSON. Reports it cannot use are acknowledged as ignored with 200.
func (h *Handler) StatusCallback(w http.ResponseWriter, r *http.Request) {
	cb, ok := parseStatusCallback(w, r)
	if !ok {
		slog.Warn("unparseable status callback", "content_type", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, service.Ack{Status: service.AckIgnored})
		return
	}

	ack, err := h.reconciler.Apply(r.Context(), cb)
	if err != nil {
		writeError(w, r, apperr.Internal("apply status callback", err))
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func parseStatusCallback(w http.ResponseWriter, r *http.Request) (service.StatusCallback, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch {
	case mediaType == "application/x-www-form-urlencoded" || strings.HasPrefix(mediaType, "multipart/"):
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return service.StatusCallback{}, false
		}
		return service.StatusCallback{
			ProviderMessageID: r.PostForm.Get("MessageSid"),
			ProviderStatus:    r.PostForm.Get("MessageStatus"),
			ErrorCode:         r.PostForm.Get("ErrorCode"),
			ErrorMessage:      r.PostForm.Get("ErrorMessage"),
		}, true
	default:
		var body statusCallbackJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return service.StatusCallback{}, false
		}
		return service.StatusCallback{
			ProviderMessageID: body.ProviderMessageID,
			ProviderStatus:    body.ProviderStatus,
			ErrorCode:         body.ErrorCode,
			ErrorMessage:      body.ErrorMessage,
		}, true
	}
}
