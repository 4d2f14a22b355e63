package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/config"
	"github.com/betomanzoli/pharma-conecta-brasil-sub001/pkg/logger"
)

const fallbackPingTimeout = 10 * time.Second

// keyPrefix namespaces persisted entries away from other users of the store.
const keyPrefix = "datacache:"

// RedisStore implements PersistentStore on top of a Redis key/value table.
// Entries are stored JSON-encoded with a server-side expiration matching
// their TTL, so the store never serves entries older than their lifetime.
type RedisStore struct {
	client redis.UniversalClient
	once   sync.Once
}

// NewRedisStore connects to Redis and validates connectivity before
// returning the store.
func NewRedisStore(ctx context.Context, cfg *config.RedisConfig) (*RedisStore, error) {
	log := logger.FromContext(ctx).With("component", "cache_redis_store")
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	client, err := buildRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	log.Info("Redis backing store connected", "host", cfg.Host, "port", cfg.Port, "db", cfg.DB)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client, mostly used by tests.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func buildRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		applyOptions(opt, cfg)
		return redis.NewClient(opt), nil
	}
	opt := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	applyOptions(opt, cfg)
	return redis.NewClient(opt), nil
}

func applyOptions(opt *redis.Options, cfg *config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
}

// persistedEntry is the wire form of an Entry in the backing store.
type persistedEntry struct {
	Key       string        `json:"key"`
	Source    string        `json:"source"`
	Data      any           `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
}

func (s *RedisStore) Read(ctx context.Context, compositeKey string) (*Entry, error) {
	raw, err := s.client.Get(ctx, keyPrefix+compositeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading persisted entry %q: %w", compositeKey, err)
	}
	var pe persistedEntry
	if err := json.Unmarshal(raw, &pe); err != nil {
		return nil, fmt.Errorf("decoding persisted entry %q: %w", compositeKey, err)
	}
	return &Entry{
		Key:       pe.Key,
		Source:    pe.Source,
		Data:      pe.Data,
		Timestamp: pe.Timestamp,
		TTL:       pe.TTL,
	}, nil
}

func (s *RedisStore) Write(ctx context.Context, entry *Entry) error {
	expiration := entry.TTL - time.Since(entry.Timestamp)
	if expiration <= 0 {
		// Already stale, nothing durable to keep.
		return nil
	}
	raw, err := json.Marshal(persistedEntry{
		Key:       entry.Key,
		Source:    entry.Source,
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		TTL:       entry.TTL,
	})
	if err != nil {
		return fmt.Errorf("encoding entry %q: %w", entry.CompositeKey(), err)
	}
	if err := s.client.Set(ctx, keyPrefix+entry.CompositeKey(), raw, expiration).Err(); err != nil {
		return fmt.Errorf("writing persisted entry %q: %w", entry.CompositeKey(), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, compositeKey string) error {
	if err := s.client.Del(ctx, keyPrefix+compositeKey).Err(); err != nil {
		return fmt.Errorf("deleting persisted entry %q: %w", compositeKey, err)
	}
	return nil
}

// Close shuts down the underlying client. Safe to call multiple times.
func (s *RedisStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.client.Close()
	})
	return err
}
