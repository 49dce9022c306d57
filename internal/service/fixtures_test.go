package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/credit"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []sentCall
	err   error
	seq   int
}

type sentCall struct {
	To   string
	Body string
}

func (f *fakeProvider) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{To: to, Body: body})
	if f.err != nil {
		return "", f.err
	}
	f.seq++
	return fmt.Sprintf("SM%04d", f.seq), nil
}

func (f *fakeProvider) Calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

type env struct {
	store      *repo.Memory
	ledger     *credit.MemoryLedger
	provider   *fakeProvider
	sender     *service.Sender
	dispatcher *service.Dispatcher
	matcher    *service.Matcher
	client     *model.Client
}

func newEnv(t *testing.T, credits int) *env {
	t.Helper()

	store := repo.NewMemory()
	ledger := credit.NewMemoryLedger()
	provider := &fakeProvider{}

	c := &model.Client{Name: "Acme", Email: "ops@acme.test", APIKey: "key-acme", Active: true}
	store.Clients.Add(c)
	ledger.Set(c.ID, credits)

	sender := service.NewSender(provider, store.Messages)
	d := service.NewDispatcher(ledger, store.Messages, sender, 160)
	m := service.NewMatcher(d, store.Leads, store.Templates, store.Triggers)

	return &env{
		store:      store,
		ledger:     ledger,
		provider:   provider,
		sender:     sender,
		dispatcher: d,
		matcher:    m,
		client:     c,
	}
}

func (e *env) addClient(t *testing.T, credits int) *model.Client {
	t.Helper()
	c := &model.Client{Name: "Other", APIKey: fmt.Sprintf("key-%d", time.Now().UnixNano()), Active: true}
	e.store.Clients.Add(c)
	e.ledger.Set(c.ID, credits)
	return c
}

func (e *env) addLead(t *testing.T, clientID int64, first string, createdAt time.Time) model.Lead {
	t.Helper()
	l := &model.Lead{
		ClientID:    clientID,
		PhoneNumber: "+16502530000",
		FirstName:   first,
		CreatedAt:   createdAt,
	}
	if err := e.store.Leads.Create(context.Background(), l); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	return *l
}

func (e *env) addTemplate(t *testing.T, clientID int64, content string, active bool) *model.Template {
	t.Helper()
	tpl := &model.Template{ClientID: clientID, Name: "tpl", Content: content, Active: active}
	e.store.Templates.Add(tpl)
	return tpl
}

func (e *env) addTrigger(t *testing.T, clientID, templateID int64, cfg model.TriggerConfig) *model.Trigger {
	t.Helper()
	tr := &model.Trigger{ClientID: clientID, TemplateID: templateID, Name: "trigger", Active: true, Config: cfg}
	if err := e.store.Triggers.Create(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	return tr
}

func (e *env) balance(t *testing.T, clientID int64) int {
	t.Helper()
	bal, err := e.ledger.Balance(context.Background(), clientID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (e *env) messages(t *testing.T, clientID int64) []model.Message {
	t.Helper()
	msgs, err := e.store.Messages.List(context.Background(), clientID, 500, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}

// failingCreate rejects every new message row.
type failingCreate struct {
	repo.MessageRepository
}

func (failingCreate) Create(context.Context, *model.Message) error {
	return errors.New("db down")
}
