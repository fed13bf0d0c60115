package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yegors/flightrec/pkg/logger"
)

// DefaultPrefix is prepended to every key unless configured otherwise
const DefaultPrefix = "flightrec"

// Options configures the Redis cache
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// CacheStorage is a Redis-backed cache.Store, useful when several
// recommender instances share one cache
type CacheStorage struct {
	client *goredis.Client
	prefix string
	logger *logger.Logger
}

// NewCacheStorage connects to Redis and verifies the connection
func NewCacheStorage(ctx context.Context, opts Options, log *logger.Logger) (*CacheStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return newCacheStorage(client, opts.Prefix, log), nil
}

func newCacheStorage(client *goredis.Client, prefix string, log *logger.Logger) *CacheStorage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &CacheStorage{
		client: client,
		prefix: prefix,
		logger: log.Named("redis"),
	}
	s.logger.Info("Using Redis cache", logger.String("prefix", prefix))
	return s
}

// Key builds the Redis key for (namespace, key)
func (s *CacheStorage) Key(namespace, key string) string {
	return s.prefix + ":" + namespace + ":" + key
}

// Get implements cache.Store
func (s *CacheStorage) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.Key(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Put implements cache.Store. Redis handles expiry itself.
func (s *CacheStorage) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	// A zero expiration keeps the key forever
	if err := s.client.Set(ctx, s.Key(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close implements cache.Store
func (s *CacheStorage) Close() error {
	return s.client.Close()
}
