package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing one")
)

// MessageRepository persists messages. Status writes never move a message
// backward: MarkSent and MarkFailed only act on PENDING/QUEUED rows and
// ApplyStatus is a compare-and-swap on the current status.
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, clientID, id int64) (*model.Message, error)
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	GetByProviderID(ctx context.Context, providerID string) (*model.Message, error)
	List(ctx context.Context, clientID int64, limit, offset int) ([]model.Message, error)

	MarkQueued(ctx context.Context, id int64) error
	// ClaimQueued moves a QUEUED message back to PENDING and reports
	// whether this caller made the move. Exactly one of the queue worker
	// and the enqueue fallback wins it and may call the provider.
	ClaimQueued(ctx context.Context, id int64) (bool, error)
	MarkSent(ctx context.Context, id int64, providerID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	ApplyStatus(ctx context.Context, id int64, from model.Status, u model.StatusUpdate) (bool, error)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
