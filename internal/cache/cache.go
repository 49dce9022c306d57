package cache

import (
	"context"
	"time"
)

// MessageCache maps provider message ids back to internal message ids so
// status callbacks can skip the database lookup.
type MessageCache interface {
	StoreSent(ctx context.Context, messageID int64, providerID string, sentAt time.Time) error
	LookupProviderID(ctx context.Context, providerID string) (messageID int64, ok bool, err error)
}

// SweepMarker records which lead-age sweeps already ran.
type SweepMarker interface {
	// MarkSweep returns true the first time it is called for a trigger, lead
	// and window day, false afterwards.
	MarkSweep(ctx context.Context, triggerID, leadID int64, day time.Time) (bool, error)
}
