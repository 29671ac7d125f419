package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/fincache/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, defaults to "fincache:"
}

// RedisClient stores documents as plain Redis string values without expiry.
type RedisClient struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisClient creates a Redis document client. It does not connect until
// first use; call Ping to verify connectivity.
func NewRedisClient(cfg RedisConfig) *RedisClient {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "fincache:"
	}
	return &RedisClient{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		namespace: namespace,
	}
}

// Ping checks the connection.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

func (c *RedisClient) GetDocument(ctx context.Context, key string) ([]byte, error) {
	body, err := c.rdb.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return body, nil
}

func (c *RedisClient) PutDocument(ctx context.Context, key string, body []byte) error {
	if err := c.rdb.Set(ctx, c.namespace+key, body, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (c *RedisClient) DeleteDocument(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.namespace+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (c *RedisClient) DocumentExists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.namespace+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// ListDocuments scans for keys under prefix. SCAN may return a key more than
// once; duplicates are removed.
func (c *RedisClient) ListDocuments(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(c.namespace+prefix) + "*"
	iter := c.rdb.Scan(ctx, 0, match, 200).Iterator()

	seen := make(map[string]bool)
	var keys []string
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), c.namespace)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return keys, nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
