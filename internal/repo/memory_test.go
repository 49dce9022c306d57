package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
)

func TestMemoryMessages_MarkSentNeverRegresses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Messages

	m := &model.Message{ClientID: 1, LeadID: 1, ToNumber: "+15550000001", Content: "hi"}
	if err := store.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	delivered := time.Now().UTC()
	ok, err := store.ApplyStatus(ctx, m.ID, model.Pending, model.StatusUpdate{Status: model.Delivered, DeliveredAt: &delivered})
	if err != nil || !ok {
		t.Fatalf("apply: ok=%v err=%v", ok, err)
	}

	if err := store.MarkSent(ctx, m.ID, "SM1", time.Now()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	got, _ := store.GetByID(ctx, m.ID)
	if got.Status != model.Delivered {
		t.Fatalf("expected delivered to stick, got %s", got.Status)
	}
	if got.ProviderMessageID == nil || *got.ProviderMessageID != "SM1" {
		t.Fatalf("expected provider id recorded, got %v", got.ProviderMessageID)
	}
}

func TestMemoryMessages_MarkFailedOnlyFromUnsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Messages

	m := &model.Message{ClientID: 1, LeadID: 1}
	_ = store.Create(ctx, m)
	_ = store.MarkSent(ctx, m.ID, "SM2", time.Now())

	if err := store.MarkFailed(ctx, m.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := store.GetByID(ctx, m.ID)
	if got.Status != model.Sent {
		t.Fatalf("expected sent, got %s", got.Status)
	}
}

func TestMemoryMessages_ProviderIDUnique(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Messages

	a := &model.Message{ClientID: 1, LeadID: 1}
	b := &model.Message{ClientID: 1, LeadID: 1}
	_ = store.Create(ctx, a)
	_ = store.Create(ctx, b)

	if err := store.MarkSent(ctx, a.ID, "SMX", time.Now()); err != nil {
		t.Fatalf("mark sent a: %v", err)
	}
	if err := store.MarkSent(ctx, b.ID, "SMX", time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryMessages_ApplyStatusIsCAS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Messages

	m := &model.Message{ClientID: 1, LeadID: 1}
	_ = store.Create(ctx, m)

	ok, _ := store.ApplyStatus(ctx, m.ID, model.Sent, model.StatusUpdate{Status: model.Delivered})
	if ok {
		t.Fatalf("expected CAS miss when current status differs")
	}
}

func TestMemoryMessages_ListScopedAndPaged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Messages

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = store.Create(ctx, &model.Message{ClientID: 1, LeadID: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	_ = store.Create(ctx, &model.Message{ClientID: 2, LeadID: 9})

	got, err := store.List(ctx, 1, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Fatalf("expected newest first [3 2], got %+v", got)
	}

	if _, err := store.Get(ctx, 2, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-client get to be not found, got %v", err)
	}
}

func TestMemoryLeads_ListCreatedBetweenHalfOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Leads

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	for _, at := range []time.Time{from.Add(-time.Second), from, to.Add(-time.Nanosecond), to} {
		_ = store.Create(ctx, &model.Lead{ClientID: 1, CreatedAt: at})
	}

	got, _ := store.ListCreatedBetween(ctx, 1, from, to)
	if len(got) != 2 {
		t.Fatalf("expected 2 leads in window, got %d", len(got))
	}
}

func TestMemoryTriggers_WebhookKeyConflictAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory().Triggers

	first := &model.Trigger{ClientID: 1, TemplateID: 1, Active: true, Config: model.WebhookConfig{WebhookKey: "k1"}}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &model.Trigger{ClientID: 2, TemplateID: 2, Active: true, Config: model.WebhookConfig{WebhookKey: "k1"}}
	if err := store.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := store.FindActiveWebhook(ctx, "k1")
	if err != nil || got.ID != first.ID {
		t.Fatalf("expected trigger %d, got %+v err=%v", first.ID, got, err)
	}
	if _, err := store.FindActiveWebhook(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
