package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

func TestDispatch_ZeroBalanceCreatesNothing(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 0)
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})

	_, err := e.dispatcher.Dispatch(context.Background(), e.client.ID, lead, "hello", nil)
	if !apperr.Is(err, apperr.KindInsufficientCredit) {
		t.Fatalf("expected InsufficientCredit, got %v", err)
	}
	if got := e.messages(t, e.client.ID); len(got) != 0 {
		t.Fatalf("expected no messages, got %d", len(got))
	}
	if bal := e.balance(t, e.client.ID); bal != 0 {
		t.Fatalf("expected balance 0, got %d", bal)
	}
	if len(e.provider.Calls()) != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestDispatch_SuccessDebitsOneAndMarksSent(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 5)
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})

	m, err := e.dispatcher.Dispatch(context.Background(), e.client.ID, lead, "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.Sent {
		t.Fatalf("expected sent, got %s", m.Status)
	}
	if m.ProviderMessageID == nil || *m.ProviderMessageID == "" {
		t.Fatalf("expected provider id, got nil")
	}
	if m.SentAt == nil {
		t.Fatalf("expected sent_at stamped")
	}
	if bal := e.balance(t, e.client.ID); bal != 4 {
		t.Fatalf("expected balance 4, got %d", bal)
	}

	calls := e.provider.Calls()
	if len(calls) != 1 || calls[0].To != "+16502530000" || calls[0].Body != "hello" {
		t.Fatalf("unexpected provider calls: %+v", calls)
	}
}

// Credits pay for the attempt: a provider rejection is not refunded.
func TestDispatch_ProviderFailureKeepsDebit(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 2)
	e.provider.err = errors.New("Twilio error: invalid To number")
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})

	m, err := e.dispatcher.Dispatch(context.Background(), e.client.ID, lead, "hello", nil)
	if !apperr.Is(err, apperr.KindProviderFailure) {
		t.Fatalf("expected ProviderFailure, got %v", err)
	}
	if m == nil || m.Status != model.Failed {
		t.Fatalf("expected failed message, got %+v", m)
	}
	if m.ErrorMessage == nil || !strings.Contains(*m.ErrorMessage, "invalid To number") {
		t.Fatalf("expected provider error stored, got %v", m.ErrorMessage)
	}
	if bal := e.balance(t, e.client.ID); bal != 1 {
		t.Fatalf("expected balance 1, got %d", bal)
	}
}

func TestDispatch_ConcurrentLastCredit(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 1)
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, refused int
		unexpected  []error
		start       = make(chan struct{})
		dispatchers = 8
	)
	for i := 0; i < dispatchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.dispatcher.Dispatch(context.Background(), e.client.ID, lead, "hello", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.KindInsufficientCredit):
				refused++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(unexpected) != 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 1 || refused != dispatchers-1 {
		t.Fatalf("expected 1 success and %d refusals, got %d/%d", dispatchers-1, ok, refused)
	}
	if got := e.messages(t, e.client.ID); len(got) != 1 {
		t.Fatalf("expected one message, got %d", len(got))
	}
	if bal := e.balance(t, e.client.ID); bal != 0 {
		t.Fatalf("expected balance 0, got %d", bal)
	}
}

func TestDispatch_RejectsBeforeBilling(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 3)
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})
	other := e.addClient(t, 3)

	cases := []struct {
		name     string
		clientID int64
		content  string
		kind     apperr.Kind
	}{
		{"empty content", e.client.ID, "  ", apperr.KindValidation},
		{"too long", e.client.ID, strings.Repeat("x", 161), apperr.KindValidation},
		{"foreign lead", other.ID, "hello", apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.dispatcher.Dispatch(context.Background(), tc.clientID, lead, tc.content, nil)
			if !apperr.Is(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}

	if bal := e.balance(t, e.client.ID); bal != 3 {
		t.Fatalf("expected balance untouched, got %d", bal)
	}
	if bal := e.balance(t, other.ID); bal != 3 {
		t.Fatalf("expected other balance untouched, got %d", bal)
	}
}

func TestDispatch_RefundsWhenMessageCannotBeStored(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 2)
	lead := e.addLead(t, e.client.ID, "Ann", time.Time{})

	d := service.NewDispatcher(e.ledger, failingCreate{e.store.Messages}, e.sender, 160)
	_, err := d.Dispatch(context.Background(), e.client.ID, lead, "hello", nil)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected Internal, got %v", err)
	}
	if bal := e.balance(t, e.client.ID); bal != 2 {
		t.Fatalf("expected refund to 2, got %d", bal)
	}
	if len(e.provider.Calls()) != 0 {
		t.Fatalf("provider must not be called")
	}
}
