package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore stores documents as plain keys. FindOneAndUpdate uses
// WATCH/MULTI optimistic concurrency: a concurrent write to the same
// document aborts the transaction and the cycle retries, bounded by
// maxRetries.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
}

// NewRedisStore connects to redis using the configured URL.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	maxRetries := cfg.RedisMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &RedisStore{client: client, maxRetries: maxRetries}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, maxRetries: 3}
}

func redisKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

// FindOne returns the document bytes.
func (s *RedisStore) FindOne(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// FindOneAndUpdate runs an optimistic WATCH cycle over the document
// key, retrying when a concurrent write invalidates the transaction.
func (s *RedisStore) FindOneAndUpdate(ctx context.Context, collection, id string, update UpdateFunc) ([]byte, error) {
	key := redisKey(collection, id)

	var updated []byte
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get failed: %w", err)
		}

		updated, err = update(data)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("document update contended after %d attempts", s.maxRetries)
}

// Save upserts the whole document.
func (s *RedisStore) Save(ctx context.Context, collection, id string, doc []byte) error {
	if err := s.client.Set(ctx, redisKey(collection, id), doc, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes the document.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	deleted, err := s.client.Del(ctx, redisKey(collection, id)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck pings the redis server.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
