package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cutout:"

// ResultCache 按输入内容缓存处理结果（PNG 字节）
type ResultCache interface {
	Get(ctx context.Context, md5 string, crop bool) ([]byte, error)
	Set(ctx context.Context, md5 string, crop bool, png []byte) error
}

// Key 缓存键：cutout:<md5>:<crop>
func Key(md5 string, crop bool) string {
	return fmt.Sprintf("%s%s:%t", keyPrefix, md5, crop)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get 未命中时返回 nil, nil
func (c *RedisCache) Get(ctx context.Context, md5 string, crop bool) ([]byte, error) {
	data, err := c.client.Get(ctx, Key(md5, crop)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, md5 string, crop bool, png []byte) error {
	return c.client.Set(ctx, Key(md5, crop), png, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Noop 关闭缓存时使用，永远未命中
type Noop struct{}

func (Noop) Get(context.Context, string, bool) ([]byte, error) { return nil, nil }

func (Noop) Set(context.Context, string, bool, []byte) error { return nil }
