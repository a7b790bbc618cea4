// Package cache holds preview entries between preview and confirm.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inventory_import"

// Connect creates a Redis client from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Redis stores previews as JSON with a native TTL. A per-requester index
// key points at the requester's current preview so a new preview can drop
// the previous one.
type Redis struct {
	client *redis.Client
}

var _ core.PreviewCache = (*Redis)(nil)

// NewRedis wraps client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func previewKey(token string) string {
	return fmt.Sprintf("%s:preview:%s", keyPrefix, token)
}

func requesterKey(id string) string {
	return fmt.Sprintf("%s:requester:%s", keyPrefix, id)
}

func (r *Redis) Put(ctx context.Context, entry core.PreviewEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}

	previous, err := r.client.Get(ctx, requesterKey(entry.RequesterID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read requester index: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, previewKey(entry.Token), data, ttl)
		pipe.Set(ctx, requesterKey(entry.RequesterID), entry.Token, ttl)
		if previous != "" && previous != entry.Token {
			pipe.Del(ctx, previewKey(previous))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, token string) (*core.PreviewEntry, error) {
	data, err := r.client.Get(ctx, previewKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrPreviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}

	var entry core.PreviewEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return &entry, nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, previewKey(token)).Err(); err != nil {
		return fmt.Errorf("delete preview: %w", err)
	}
	return nil
}
