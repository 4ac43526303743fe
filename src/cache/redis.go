package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores pages as JSON under digested keys. Keys expire after ttl, which
// should cover both the freshness window and any stale-serving window.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis creates a Redis-backed store.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, err := r.rdb.Get(ctx, key.Digest()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key.String(), Err: err}
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &Error{Op: "decode", Key: key.String(), Err: err}
	}
	return &entry, nil
}

func (r *Redis) Put(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return &Error{Op: "encode", Key: key.String(), Err: err}
	}
	if err := r.rdb.Set(ctx, key.Digest(), raw, r.ttl).Err(); err != nil {
		return &Error{Op: "put", Key: key.String(), Err: err}
	}
	return nil
}
