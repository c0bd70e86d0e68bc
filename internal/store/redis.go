package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// RedisStore provides Redis-backed blob persistence. Every key is stored as
// a plain string value under prefix+key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store.
// Returns error if connection fails.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.StorageError("parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (rs *RedisStore) key(key string) string {
	return rs.prefix + path.Clean(key)
}

func (rs *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := rs.client.Set(ctx, rs.key(key), data, 0).Err(); err != nil {
		return errors.StorageError("saving blob", err)
	}
	return nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rs.client.Get(ctx, rs.key(key)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.NotFoundError(fmt.Sprintf("blob %s", key))
		}
		return nil, errors.StorageError("loading blob", err)
	}
	return data, nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.key(key)).Err(); err != nil {
		return errors.StorageError("deleting blob", err)
	}
	return nil
}

func (rs *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rs.client.Exists(ctx, rs.key(key)).Result()
	if err != nil {
		return false, errors.StorageError("checking blob", err)
	}
	return n > 0, nil
}

// List scans the keyspace for blobs directly inside dir.
func (rs *RedisStore) List(ctx context.Context, dir string) ([]string, error) {
	dir = cleanDir(dir)
	pattern := rs.prefix + "*"
	if dir != "." {
		pattern = rs.prefix + dir + "/*"
	}

	var keys []string
	iter := rs.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), rs.prefix)
		if path.Dir(key) == dir {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.StorageError("listing blobs", err)
	}

	slices.Sort(keys)
	return keys, nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
