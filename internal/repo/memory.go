package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
)

// Memory is an in-process store with the same write rules as the Postgres
// repositories. It backs tests and local runs without a database.
type Memory struct {
	Clients   *MemoryClients
	Leads     *MemoryLeads
	Templates *MemoryTemplates
	Triggers  *MemoryTriggers
	Messages  *MemoryMessages
}

func NewMemory() *Memory {
	return &Memory{
		Clients:   &MemoryClients{byID: map[int64]model.Client{}},
		Leads:     &MemoryLeads{byID: map[int64]model.Lead{}},
		Templates: &MemoryTemplates{byID: map[int64]model.Template{}},
		Triggers:  &MemoryTriggers{byID: map[int64]model.Trigger{}},
		Messages:  &MemoryMessages{byID: map[int64]model.Message{}},
	}
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

type MemoryClients struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]model.Client
}

// Add stores c, assigning an id when c.ID is zero.
func (r *MemoryClients) Add(c *model.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.seq++
		c.ID = r.seq
	} else if c.ID > r.seq {
		r.seq = c.ID
	}
	stamp(&c.CreatedAt)
	r.byID[c.ID] = *c
}

func (r *MemoryClients) GetByID(_ context.Context, id int64) (*model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryClients) GetByAPIKey(_ context.Context, apiKey string) (*model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if apiKey != "" && c.APIKey == apiKey {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

type MemoryLeads struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]model.Lead
}

func (r *MemoryLeads) Create(_ context.Context, l *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	l.ID = r.seq
	stamp(&l.CreatedAt)
	r.byID[l.ID] = *l
	return nil
}

func (r *MemoryLeads) Get(_ context.Context, clientID, id int64) (*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok || l.ClientID != clientID {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *MemoryLeads) ListCreatedBetween(_ context.Context, clientID int64, from, to time.Time) ([]model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Lead
	for _, l := range r.byID {
		if l.ClientID != clientID || l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type MemoryTemplates struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]model.Template
}

func (r *MemoryTemplates) Add(t *model.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t.ID = r.seq
	stamp(&t.CreatedAt)
	r.byID[t.ID] = *t
}

func (r *MemoryTemplates) Create(_ context.Context, t *model.Template) error {
	r.Add(t)
	return nil
}

func (r *MemoryTemplates) Get(_ context.Context, clientID, id int64) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok || t.ClientID != clientID {
		return nil, ErrNotFound
	}
	return &t, nil
}

type MemoryTriggers struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]model.Trigger
}

func (r *MemoryTriggers) Create(_ context.Context, t *model.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wc, ok := t.Config.(model.WebhookConfig); ok {
		for _, existing := range r.byID {
			if ec, ok := existing.Config.(model.WebhookConfig); ok && ec.WebhookKey == wc.WebhookKey {
				return ErrConflict
			}
		}
	}
	r.seq++
	t.ID = r.seq
	stamp(&t.CreatedAt)
	r.byID[t.ID] = *t
	return nil
}

func (r *MemoryTriggers) filter(keep func(model.Trigger) bool) []model.Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Trigger
	for _, t := range r.byID {
		if t.Active && keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryTriggers) ListActive(_ context.Context, kind model.TriggerKind) ([]model.Trigger, error) {
	return r.filter(func(t model.Trigger) bool { return t.Kind() == kind }), nil
}

func (r *MemoryTriggers) ListActiveForClient(_ context.Context, clientID int64, kind model.TriggerKind) ([]model.Trigger, error) {
	return r.filter(func(t model.Trigger) bool { return t.ClientID == clientID && t.Kind() == kind }), nil
}

func (r *MemoryTriggers) FindActiveWebhook(_ context.Context, key string) (*model.Trigger, error) {
	found := r.filter(func(t model.Trigger) bool {
		wc, ok := t.Config.(model.WebhookConfig)
		return ok && wc.WebhookKey == key
	})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

type MemoryMessages struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]model.Message
}

func (r *MemoryMessages) Create(_ context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Status == "" {
		m.Status = model.Pending
	}
	r.seq++
	m.ID = r.seq
	stamp(&m.CreatedAt)
	r.byID[m.ID] = *m
	return nil
}

func (r *MemoryMessages) Get(_ context.Context, clientID, id int64) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok || m.ClientID != clientID {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryMessages) GetByID(_ context.Context, id int64) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryMessages) GetByProviderID(_ context.Context, providerID string) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.ProviderMessageID != nil && *m.ProviderMessageID == providerID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryMessages) List(_ context.Context, clientID int64, limit, offset int) ([]model.Message, error) {
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	var all []model.Message
	for _, m := range r.byID {
		if m.ClientID == clientID {
			all = append(all, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryMessages) MarkQueued(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if ok && m.Status == model.Pending {
		m.Status = model.Queued
		r.byID[id] = m
	}
	return nil
}

func (r *MemoryMessages) ClaimQueued(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.Status != model.Queued {
		return false, nil
	}
	m.Status = model.Pending
	r.byID[id] = m
	return true, nil
}

func (r *MemoryMessages) MarkSent(_ context.Context, id int64, providerID string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.Status == model.Failed {
		return nil
	}
	for otherID, other := range r.byID {
		if otherID != id && other.ProviderMessageID != nil && *other.ProviderMessageID == providerID {
			return ErrConflict
		}
	}
	if m.Status == model.Pending || m.Status == model.Queued {
		m.Status = model.Sent
	}
	pid := providerID
	m.ProviderMessageID = &pid
	if m.SentAt == nil {
		at := sentAt.UTC()
		m.SentAt = &at
	}
	r.byID[id] = m
	return nil
}

func (r *MemoryMessages) MarkFailed(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || (m.Status != model.Pending && m.Status != model.Queued) {
		return nil
	}
	m.Status = model.Failed
	msg := reason
	m.ErrorMessage = &msg
	r.byID[id] = m
	return nil
}

func (r *MemoryMessages) ApplyStatus(_ context.Context, id int64, from model.Status, u model.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.Status != from {
		return false, nil
	}
	if m.Status == model.Delivered && m.DeliveredAt != nil {
		return false, nil
	}
	m.Apply(u)
	r.byID[id] = m
	return true, nil
}

var (
	_ ClientRepository   = (*MemoryClients)(nil)
	_ LeadRepository     = (*MemoryLeads)(nil)
	_ TemplateRepository = (*MemoryTemplates)(nil)
	_ TriggerRepository  = (*MemoryTriggers)(nil)
	_ MessageRepository  = (*MemoryMessages)(nil)

	_ ClientRepository   = (*PostgresClientRepo)(nil)
	_ LeadRepository     = (*PostgresLeadRepo)(nil)
	_ TemplateRepository = (*PostgresTemplateRepo)(nil)
	_ TriggerRepository  = (*PostgresTriggerRepo)(nil)
	_ MessageRepository  = (*PostgresMessageRepo)(nil)
)
