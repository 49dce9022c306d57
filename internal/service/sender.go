package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/cache"
	"github.com/LeventeLantos/sms-remarketing/internal/client"
	"github.com/LeventeLantos/sms-remarketing/internal/metrics"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

const markSentAttempts = 3

// ErrSentNotRecorded means the provider accepted the message but the send
// could not be stored. Calling the provider again would send it twice.
var ErrSentNotRecorded = errors.New("provider accepted the message but the send was not recorded")

// Sender performs the provider call for one message and records the
// outcome on it.
type Sender struct {
	provider   client.Provider
	messages   repo.MessageRepository
	cache      cache.MessageCache
	now        func() time.Time
	retryDelay time.Duration
}

func NewSender(provider client.Provider, messages repo.MessageRepository) *Sender {
	return &Sender{
		provider:   provider,
		messages:   messages,
		now:        time.Now,
		retryDelay: 100 * time.Millisecond,
	}
}

// WithCache indexes provider ids in c after each successful send.
func (s *Sender) WithCache(c cache.MessageCache) *Sender {
	s.cache = c
	return s
}

// Deliver sends m and stores SENT or FAILED on it. A provider rejection is
// returned as an apperr ProviderFailure after the failure is recorded; any
// other error means the outcome could not be stored; it wraps
// ErrSentNotRecorded when the provider did accept the message.
func (s *Sender) Deliver(ctx context.Context, m *model.Message) (*model.Message, error) {
	providerID, sendErr := s.provider.Send(ctx, m.ToNumber, m.Content)
	if sendErr != nil {
		metrics.Deliveries.WithLabelValues("failed").Inc()
		reason := sendErr.Error()

		if err := s.messages.MarkFailed(ctx, m.ID, reason); err != nil {
			return m, fmt.Errorf("mark message %d failed: %w", m.ID, err)
		}
		slog.Warn("provider send failed", "message_id", m.ID, "client_id", m.ClientID, "error", reason)

		m = s.reload(ctx, m, func(cur *model.Message) {
			if cur.Status == model.Pending || cur.Status == model.Queued {
				cur.Status = model.Failed
				cur.ErrorMessage = &reason
			}
		})
		return m, apperr.ProviderFailure(reason).WithDetails(map[string]any{"message_id": m.ID})
	}

	metrics.Deliveries.WithLabelValues("sent").Inc()
	sentAt := s.now().UTC()
	if err := s.markSent(ctx, m.ID, providerID, sentAt); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			slog.Error("provider id already assigned to another message", "message_id", m.ID, "provider_id", providerID)
		}
		return m, fmt.Errorf("%w: message %d as %s: %w", ErrSentNotRecorded, m.ID, providerID, err)
	}

	if s.cache != nil {
		if err := s.cache.StoreSent(ctx, m.ID, providerID, sentAt); err != nil {
			slog.Warn("cache store failed", "message_id", m.ID, "provider_id", providerID, "error", err)
		}
	}

	slog.Info("message sent", "message_id", m.ID, "client_id", m.ClientID, "provider_id", providerID)

	return s.reload(ctx, m, func(cur *model.Message) {
		if cur.Status == model.Pending || cur.Status == model.Queued {
			cur.Status = model.Sent
		}
		cur.ProviderMessageID = &providerID
		if cur.SentAt == nil {
			cur.SentAt = &sentAt
		}
	}), nil
}

// markSent retries transient storage errors so an accepted send is not
// lost. Conflicts are not retried.
func (s *Sender) markSent(ctx context.Context, id int64, providerID string, sentAt time.Time) error {
	for attempt := 1; ; attempt++ {
		err := s.messages.MarkSent(ctx, id, providerID, sentAt)
		if err == nil || errors.Is(err, repo.ErrConflict) || attempt == markSentAttempts {
			return err
		}
		slog.Warn("mark sent failed, retrying", "message_id", id, "provider_id", providerID, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
}

// reload returns the stored message, or m with local applied when the
// read fails.
func (s *Sender) reload(ctx context.Context, m *model.Message, local func(*model.Message)) *model.Message {
	cur, err := s.messages.GetByID(ctx, m.ID)
	if err == nil {
		return cur
	}
	copied := *m
	local(&copied)
	return &copied
}
