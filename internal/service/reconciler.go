package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/cache"
	"github.com/LeventeLantos/sms-remarketing/internal/metrics"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

const casAttempts = 3

// StatusCallback is one delivery report from the provider.
type StatusCallback struct {
	ProviderMessageID string
	ProviderStatus    string
	ErrorCode         string
	ErrorMessage      string
}

type Ack struct {
	Status    string `json:"status"`
	MessageID *int64 `json:"message_id,omitempty"`
}

const (
	AckUpdated = "updated"
	AckIgnored = "ignored"
)

// MapProviderStatus translates the provider vocabulary. ok is false for
// statuses that leave the message unchanged.
func MapProviderStatus(s string) (model.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued":
		return model.Queued, true
	case "sending", "sent":
		return model.Sent, true
	case "delivered":
		return model.Delivered, true
	case "undelivered", "failed":
		return model.Failed, true
	default:
		return "", false
	}
}

func failureText(code, message string) string {
	if code == "" {
		return ""
	}
	if message == "" {
		message = "Unknown error"
	}
	return fmt.Sprintf("Provider error %s: %s", code, message)
}

// Reconciler applies provider status callbacks to messages. It never
// returns an error for a report it cannot use; those are acknowledged as
// ignored.
type Reconciler struct {
	messages repo.MessageRepository
	cache    cache.MessageCache
	now      func() time.Time
}

func NewReconciler(messages repo.MessageRepository) *Reconciler {
	return &Reconciler{messages: messages, now: time.Now}
}

func (r *Reconciler) WithCache(c cache.MessageCache) *Reconciler {
	r.cache = c
	return r
}

func (r *Reconciler) lookup(ctx context.Context, providerID string) (*model.Message, error) {
	if r.cache != nil {
		id, ok, err := r.cache.LookupProviderID(ctx, providerID)
		if err != nil {
			slog.Warn("cache lookup failed", "provider_id", providerID, "error", err)
		}
		if ok {
			m, err := r.messages.GetByID(ctx, id)
			if err == nil && m.ProviderMessageID != nil && *m.ProviderMessageID == providerID {
				return m, nil
			}
		}
	}
	return r.messages.GetByProviderID(ctx, providerID)
}

// Apply reconciles cb against its message. Only storage failures are
// returned as errors.
func (r *Reconciler) Apply(ctx context.Context, cb StatusCallback) (Ack, error) {
	if strings.TrimSpace(cb.ProviderMessageID) == "" {
		metrics.StatusCallbacks.WithLabelValues("ignored").Inc()
		slog.Warn("status callback without provider id")
		return Ack{Status: AckIgnored}, nil
	}

	m, err := r.lookup(ctx, cb.ProviderMessageID)
	if errors.Is(err, repo.ErrNotFound) {
		metrics.StatusCallbacks.WithLabelValues("unknown").Inc()
		slog.Warn("status callback for unknown message", "provider_id", cb.ProviderMessageID, "provider_status", cb.ProviderStatus)
		return Ack{Status: AckIgnored}, nil
	}
	if err != nil {
		return Ack{}, fmt.Errorf("lookup message by provider id: %w", err)
	}

	id := m.ID
	next, known := MapProviderStatus(cb.ProviderStatus)
	if !known {
		// The callback is accepted for a known message; the status stays put.
		metrics.StatusCallbacks.WithLabelValues("unmapped").Inc()
		slog.Info("unmapped provider status", "message_id", id, "status", m.Status, "provider_status", cb.ProviderStatus)
		return Ack{Status: AckUpdated, MessageID: &id}, nil
	}
	errText := failureText(cb.ErrorCode, cb.ErrorMessage)

	for attempt := 0; attempt < casAttempts; attempt++ {
		u, ok := m.Reconcile(next, errText, r.now().UTC())
		if !ok {
			metrics.StatusCallbacks.WithLabelValues("ignored").Inc()
			slog.Info("status callback ignored", "message_id", id, "status", m.Status, "provider_status", cb.ProviderStatus)
			return Ack{Status: AckIgnored, MessageID: &id}, nil
		}

		applied, err := r.messages.ApplyStatus(ctx, id, m.Status, u)
		if err != nil {
			return Ack{}, fmt.Errorf("apply status to message %d: %w", id, err)
		}
		if applied {
			metrics.StatusCallbacks.WithLabelValues("updated").Inc()
			slog.Info("message status updated", "message_id", id, "from", m.Status, "to", u.Status, "provider_status", cb.ProviderStatus)
			return Ack{Status: AckUpdated, MessageID: &id}, nil
		}

		m, err = r.messages.GetByID(ctx, id)
		if err != nil {
			return Ack{}, fmt.Errorf("reload message %d: %w", id, err)
		}
	}

	metrics.StatusCallbacks.WithLabelValues("contended").Inc()
	slog.Warn("status callback lost to concurrent updates", "message_id", id, "provider_status", cb.ProviderStatus)
	return Ack{Status: AckIgnored, MessageID: &id}, nil
}
