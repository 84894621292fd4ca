// Package redis keeps topic explanations in Redis instead of the SQL table.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/bryanwahyu/learncode/internal/domain/explanation"
)

const keyPrefix = "learncode:explain:"

type ExplanationCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// New connects to addr. ttl 0 keeps entries forever.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*ExplanationCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx2).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &ExplanationCache{rdb: rdb, ttl: ttl}, nil
}

// redisKey encodes the key as a JSON array so a nil framework ([..., null])
// never collides with any named framework.
func redisKey(k domain.Key) string {
	b, _ := json.Marshal([]any{k.Topic, k.Language, k.Framework})
	return keyPrefix + string(b)
}

type record struct {
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *ExplanationCache) Get(ctx context.Context, k domain.Key) (*domain.Entry, error) {
	raw, err := c.rdb.Get(ctx, redisKey(k)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding cached explanation: %w", err)
	}
	return &domain.Entry{Key: k, Explanation: rec.Explanation, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

// Upsert is a plain SET; last writer wins.
func (c *ExplanationCache) Upsert(ctx context.Context, e *domain.Entry) error {
	b, err := json.Marshal(record{Explanation: e.Explanation, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKey(e.Key), b, c.ttl).Err()
}

// Check implements middleware.HealthChecker.
func (c *ExplanationCache) Check(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *ExplanationCache) Close() error { return c.rdb.Close() }
