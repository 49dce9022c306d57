package repo

import (
	"context"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
)

type ClientRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
}

type LeadRepository interface {
	Create(ctx context.Context, l *model.Lead) error
	Get(ctx context.Context, clientID, id int64) (*model.Lead, error)
	// ListCreatedBetween returns the client's leads with from <= created_at < to.
	ListCreatedBetween(ctx context.Context, clientID int64, from, to time.Time) ([]model.Lead, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *model.Template) error
	Get(ctx context.Context, clientID, id int64) (*model.Template, error)
}

type TriggerRepository interface {
	// Create returns ErrConflict when an active or inactive webhook trigger
	// already uses the same webhook key.
	Create(ctx context.Context, t *model.Trigger) error
	ListActive(ctx context.Context, kind model.TriggerKind) ([]model.Trigger, error)
	ListActiveForClient(ctx context.Context, clientID int64, kind model.TriggerKind) ([]model.Trigger, error)
	FindActiveWebhook(ctx context.Context, key string) (*model.Trigger, error)
}
