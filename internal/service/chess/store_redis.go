package chess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultSessionKey = "webchess:session:current"
	defaultSessionTTL = 24 * time.Hour
)

type redisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore stores the snapshot as JSON under key with the given TTL.
// Every save refreshes the TTL.
func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) Store {
	if strings.TrimSpace(key) == "" {
		key = defaultSessionKey
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &redisStore{rdb: rdb, key: key, ttl: ttl}
}

// NewRedisStoreFromURL connects to a redis:// or rediss:// URL and checks
// the connection.
func NewRedisStoreFromURL(ctx context.Context, rawURL string, ttl time.Duration) (Store, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, "", ttl), nil
}

func (s *redisStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *redisStore) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
