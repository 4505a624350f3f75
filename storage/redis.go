package storage

import (
	"context"
	"fmt"
	"time"

	"voicerelay/core"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces history keys.
const DefaultRedisKeyPrefix = "voicerelay:history:"

// RedisConfig configures RedisPersister.
type RedisConfig struct {
	Addr      string `json:"addr" mapstructure:"addr"`
	Password  string `json:"password,omitempty" mapstructure:"password"`
	DB        int    `json:"db" mapstructure:"db"`
	KeyPrefix string `json:"key_prefix,omitempty" mapstructure:"key_prefix"`
}

// RedisPersister stores each session's history as a JSON string under
// <prefix>session:<id> and tracks ids in the <prefix>sessions set.
type RedisPersister struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisPersister dials Redis and checks the connection.
func NewRedisPersister(cfg RedisConfig) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	p := NewRedisPersisterWithClient(client, cfg.KeyPrefix)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("storage: connect to redis %s: %w", cfg.Addr, err)
	}
	return p, nil
}

func NewRedisPersisterWithClient(client redis.UniversalClient, keyPrefix string) *RedisPersister {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisPersister{client: client, keyPrefix: keyPrefix}
}

func (p *RedisPersister) sessionKey(id string) string {
	return p.keyPrefix + "session:" + id
}

func (p *RedisPersister) indexKey() string {
	return p.keyPrefix + "sessions"
}

func (p *RedisPersister) LoadAll(ctx context.Context) (map[string][]core.Turn, []string, error) {
	ids, err := p.client.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: list sessions: %w", err)
	}
	out := make(map[string][]core.Turn, len(ids))
	if len(ids) == 0 {
		return out, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.sessionKey(id)
	}
	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: read histories: %w", err)
	}

	var skipped []string
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// indexed but the value is gone
			skipped = append(skipped, ids[i])
			continue
		}
		turns, err := decodeTurns([]byte(s))
		if err != nil {
			skipped = append(skipped, ids[i])
			continue
		}
		out[ids[i]] = turns
	}
	return out, skipped, nil
}

func (p *RedisPersister) Save(ctx context.Context, sessionID string, turns []core.Turn) error {
	data, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.sessionKey(sessionID), data, 0)
		pipe.SAdd(ctx, p.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: save history %s: %w", sessionID, err)
	}
	return nil
}

func (p *RedisPersister) Delete(ctx context.Context, sessionID string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.sessionKey(sessionID))
		pipe.SRem(ctx, p.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: delete history %s: %w", sessionID, err)
	}
	return nil
}

// Ping checks if the backend is reachable.
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}
