package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/credit"
	"github.com/LeventeLantos/sms-remarketing/internal/metrics"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/phone"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

// Deliverer moves a freshly created PENDING message toward the provider.
// Implementations either send in the calling goroutine or hand the message
// to a queue.
type Deliverer interface {
	Deliver(ctx context.Context, m *model.Message) (*model.Message, error)
}

type Dispatcher struct {
	ledger     credit.Ledger
	messages   repo.MessageRepository
	delivery   Deliverer
	contentMax int
	region     string
}

func NewDispatcher(ledger credit.Ledger, messages repo.MessageRepository, delivery Deliverer, contentMax int) *Dispatcher {
	return &Dispatcher{
		ledger:     ledger,
		messages:   messages,
		delivery:   delivery,
		contentMax: contentMax,
		region:     phone.DefaultRegion,
	}
}

// WithRegion sets the region used for recipient numbers without a
// country prefix.
func (d *Dispatcher) WithRegion(region string) *Dispatcher {
	if region != "" {
		d.region = region
	}
	return d
}

// Dispatch bills one credit and sends content to lead. Credit is never
// returned once the message exists, even if the provider rejects it.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID int64, lead model.Lead, content string, templateID *int64) (*model.Message, error) {
	if lead.ClientID != clientID {
		return nil, apperr.NotFound("lead not found")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("message content is empty")
	}
	if d.contentMax > 0 && utf8.RuneCountInString(content) > d.contentMax {
		return nil, apperr.Validation(fmt.Sprintf("content exceeds %d chars", d.contentMax))
	}

	ok, err := d.ledger.HasCredit(ctx, clientID)
	if err != nil {
		return nil, d.ledgerError(err)
	}
	if !ok {
		metrics.Dispatches.WithLabelValues("insufficient_credit").Inc()
		return nil, apperr.InsufficientCredit()
	}
	if err := d.ledger.Debit(ctx, clientID, 1); err != nil {
		if errors.Is(err, credit.ErrInsufficient) {
			metrics.Dispatches.WithLabelValues("insufficient_credit").Inc()
			return nil, apperr.InsufficientCredit()
		}
		return nil, d.ledgerError(err)
	}

	m := &model.Message{
		ClientID:   clientID,
		LeadID:     lead.ID,
		TemplateID: templateID,
		ToNumber:   phone.NormalizeE164(lead.PhoneNumber, d.region),
		Content:    content,
		Status:     model.Pending,
	}
	if err := d.messages.Create(ctx, m); err != nil {
		if _, rerr := d.ledger.Credit(ctx, clientID, 1); rerr != nil {
			slog.Error("credit refund failed", "client_id", clientID, "error", rerr)
		}
		metrics.Dispatches.WithLabelValues("error").Inc()
		return nil, apperr.Internal("create message", err)
	}

	out, err := d.delivery.Deliver(ctx, m)
	switch {
	case err == nil:
		metrics.Dispatches.WithLabelValues(string(out.Status)).Inc()
		return out, nil
	case apperr.Is(err, apperr.KindProviderFailure):
		metrics.Dispatches.WithLabelValues("failed").Inc()
		return out, err
	default:
		metrics.Dispatches.WithLabelValues("error").Inc()
		return out, apperr.Internal("deliver message", err)
	}
}

func (d *Dispatcher) ledgerError(err error) error {
	if errors.Is(err, credit.ErrUnknownClient) {
		return apperr.NotFound("client not found")
	}
	metrics.Dispatches.WithLabelValues("error").Inc()
	return apperr.Internal("credit ledger", err)
}
