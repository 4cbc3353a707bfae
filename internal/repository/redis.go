package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"salontime/internal/config"
	"salontime/internal/domain"
)

// NewRedisClient builds a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis connection if there is one.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

const (
	scanBatch = 100

	// generationTTL outlives any entry written under an older generation.
	generationTTL = 24 * time.Hour
)

type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{client: client, ttl: ttl}
}

func (r *RedisSlotCache) Get(ctx context.Context, key string) (*domain.SlotEntry, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slots from redis: %w", err)
	}

	var entry domain.SlotEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
	}
	return &entry, nil
}

func (r *RedisSlotCache) Set(ctx context.Context, key string, entry *domain.SlotEntry) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set slots in redis: %w", err)
	}
	return nil
}

// Generation reads the invalidation counters of prefixes; a missing counter
// reads as 0.
func (r *RedisSlotCache) Generation(ctx context.Context, prefixes ...string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if len(prefixes) == 0 {
		return "", nil
	}
	keys := make([]string, len(prefixes))
	for i, prefix := range prefixes {
		keys[i] = generationKey(prefix)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read slot generation: %w", err)
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = "0"
		if s, ok := v.(string); ok && s != "" {
			parts[i] = s
		}
	}
	return strings.Join(parts, "."), nil
}

// InvalidatePrefix bumps the prefix generation, then deletes every key
// starting with prefix. Keys are collected with SCAN before any DEL so the
// cursor is not disturbed by deletions.
func (r *RedisSlotCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	genKey := generationKey(prefix)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL+r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to bump slot generation: %w", err)
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan slot keys: %w", err)
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := r.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate slots: %w", err)
		}
	}
	return nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisDayLocker is a SET NX PX lock. Release only deletes the key while it
// still holds this holder's token.
type RedisDayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisDayLocker(client *redis.Client, ttl, wait time.Duration) *RedisDayLocker {
	return &RedisDayLocker{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (r *RedisDayLocker) Lock(ctx context.Context, key string) (func(), error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()

	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(r.retry):
		}
	}
}
