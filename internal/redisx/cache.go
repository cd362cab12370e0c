package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// StatusEntry is the cached view of one order's status.
type StatusEntry struct {
	Status    string    `json:"status"`
	UserID    int64     `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderCache keeps order statuses and idempotent create results. Redis is
// never the source of truth: a miss or an error falls back to the store.
type OrderCache struct {
	RDB            redis.Cmdable
	StatusTTL      time.Duration
	IdempotencyTTL time.Duration
}

func NewOrderCache(rdb redis.Cmdable, statusTTL, idemTTL time.Duration) *OrderCache {
	if statusTTL <= 0 {
		statusTTL = TTLStatusCache
	}
	if idemTTL <= 0 {
		idemTTL = TTLIdempotency
	}
	return &OrderCache{RDB: rdb, StatusTTL: statusTTL, IdempotencyTTL: idemTTL}
}

func (c *OrderCache) SetStatus(ctx context.Context, orderID int64, e StatusEntry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "redisx: marshal status")
	}
	return errors.Wrap(c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, c.StatusTTL).Err(), "redisx: set status")
}

func (c *OrderCache) GetStatus(ctx context.Context, orderID int64) (StatusEntry, bool, error) {
	var e StatusEntry
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, errors.Wrap(err, "redisx: get status")
	}
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return e, false, errors.Wrap(err, "redisx: decode status")
	}
	return e, true, nil
}

// SaveIdempotent stores v under the caller's idempotency key. The first
// write wins; later writes for the same key are ignored.
func (c *OrderCache) SaveIdempotent(ctx context.Context, userID int64, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "redisx: marshal idempotent result")
	}
	return errors.Wrap(c.RDB.SetNX(ctx, fmt.Sprintf(KeyIdemOrder, userID, key), b, c.IdempotencyTTL).Err(),
		"redisx: save idempotent result")
}

// LookupIdempotent decodes the stored result into out.
func (c *OrderCache) LookupIdempotent(ctx context.Context, userID int64, key string, out any) (bool, error) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrder, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redisx: lookup idempotent result")
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return false, errors.Wrap(err, "redisx: decode idempotent result")
	}
	return true, nil
}
