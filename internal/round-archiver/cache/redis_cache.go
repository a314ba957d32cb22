package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// RedisCache guarda o último evento de cada mesa no Redis
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// Key gera a chave Redis do estado mais recente de uma mesa
func Key(tableID string) string { return "craps:table:latest:" + tableID }

// SetLatest grava o evento com TTL
func (r *RedisCache) SetLatest(ctx context.Context, e events.TableEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, Key(e.TableID), b, r.TTL).Err()
}

// GetLatest devolve o último evento ou (nil, nil) se não houver
func (r *RedisCache) GetLatest(ctx context.Context, tableID string) (*events.TableEvent, error) {
	b, err := r.Client.Get(ctx, Key(tableID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e events.TableEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
