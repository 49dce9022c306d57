package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepTTL = 48 * time.Hour

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	MessageID int64     `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

func sentKey(providerID string) string {
	return "sms:sid:" + providerID
}

func sweepKey(triggerID, leadID int64, day time.Time) string {
	return fmt.Sprintf("sms:sweep:%d:%d:%s", triggerID, leadID, day.UTC().Format(time.DateOnly))
}

func (c *RedisCache) StoreSent(ctx context.Context, messageID int64, providerID string, sentAt time.Time) error {
	val := sentValue{
		MessageID: messageID,
		SentAt:    sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(providerID), b, c.ttl).Err()
}

func (c *RedisCache) LookupProviderID(ctx context.Context, providerID string) (int64, bool, error) {
	raw, err := c.rdb.Get(ctx, sentKey(providerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var val sentValue
	if err := json.Unmarshal(raw, &val); err != nil {
		return 0, false, fmt.Errorf("decode cached message for %q: %w", providerID, err)
	}
	return val.MessageID, true, nil
}

func (c *RedisCache) MarkSweep(ctx context.Context, triggerID, leadID int64, day time.Time) (bool, error) {
	return c.rdb.SetNX(ctx, sweepKey(triggerID, leadID, day), 1, sweepTTL).Result()
}

var (
	_ MessageCache = (*RedisCache)(nil)
	_ SweepMarker  = (*RedisCache)(nil)
)
