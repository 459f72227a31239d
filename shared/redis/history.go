package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryCache keeps the tail of each conversation as a capped redis list in
// chronological order.
type HistoryCache[T any] struct {
	client   redis.Cmdable
	prefix   string
	capacity int64
	ttl      time.Duration
}

// NewHistoryCache creates a cache holding at most capacity entries per key
func NewHistoryCache[T any](client redis.Cmdable, prefix string, capacity int, ttl time.Duration) *HistoryCache[T] {
	return &HistoryCache[T]{
		client:   client,
		prefix:   prefix,
		capacity: int64(capacity),
		ttl:      ttl,
	}
}

// Capacity reports how many entries are kept per key
func (h *HistoryCache[T]) Capacity() int {
	return int(h.capacity)
}

func (h *HistoryCache[T]) key(id uint) string {
	return fmt.Sprintf("%s:%d:history", h.prefix, id)
}

// Append adds item to an existing list. A missing list stays missing so the
// next read repopulates it from the database.
func (h *HistoryCache[T]) Append(ctx context.Context, id uint, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	key := h.key(id)
	pipe := h.client.TxPipeline()
	pipe.RPushX(ctx, key, data)
	pipe.LTrim(ctx, key, -h.capacity, -1)
	pipe.Expire(ctx, key, h.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Fill replaces the list with items, given oldest first
func (h *HistoryCache[T]) Fill(ctx context.Context, id uint, items []T) error {
	key := h.key(id)
	pipe := h.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(items) > 0 {
		values := make([]any, 0, len(items))
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return err
			}
			values = append(values, data)
		}
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -h.capacity, -1)
		pipe.Expire(ctx, key, h.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Tail returns up to limit of the newest items, oldest first. ok is false when
// the list is not cached.
func (h *HistoryCache[T]) Tail(ctx context.Context, id uint, limit int) ([]T, bool, error) {
	if limit <= 0 {
		return nil, false, nil
	}
	raw, err := h.client.LRange(ctx, h.key(id), -int64(limit), -1).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return nil, false, err
		}
		items = append(items, item)
	}
	return items, true, nil
}

// Invalidate drops the cached list for id
func (h *HistoryCache[T]) Invalidate(ctx context.Context, id uint) error {
	return h.client.Del(ctx, h.key(id)).Err()
}
