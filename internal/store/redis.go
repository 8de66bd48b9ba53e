package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig holds connection settings for the Redis-backed store.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// RedisStore implements Store on Redis, one JSON value per document keyed
// "<collection>:<key>".
type RedisStore struct {
	rdb    *redis.Client
	config *RedisConfig
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{rdb: rdb, config: config}, nil
}

func docKey(collection, key string) string {
	return collection + ":" + key
}

// FindOne implements Store.
func (s *RedisStore) FindOne(ctx context.Context, collection, key string, dest any) error {
	data, err := s.rdb.Get(ctx, docKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", collection, key, err)
	}
	return json.Unmarshal(data, dest)
}

// FindMany implements Store.
func (s *RedisStore) FindMany(ctx context.Context, collection, prefix string) ([][]byte, error) {
	var docs [][]byte
	iter := s.rdb.Scan(ctx, 0, docKey(collection, prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		docs = append(docs, data)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	return docs, nil
}

// UpsertOne implements Store. SET replaces unconditionally, so the unique
// constraint retry dance some backends need does not apply here.
func (s *RedisStore) UpsertOne(ctx context.Context, collection, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}
	if err := s.rdb.Set(ctx, docKey(collection, key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
	}
	return nil
}

// DeleteOne implements Store.
func (s *RedisStore) DeleteOne(ctx context.Context, collection, key string) error {
	if err := s.rdb.Del(ctx, docKey(collection, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Health pings the backend.
func (s *RedisStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}
