package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

// Loader fills a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Fetch reads key through the cache. Cache errors other than a miss fall
// through to load so a broken backend never takes reads down.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load Loader[T]) (T, error) {
	var v T
	if err := GetJSON(ctx, c, key, &v); err == nil {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = SetJSON(ctx, c, key, v, ttl)
	return v, nil
}
