package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSettingsCacheTTL はキャッシュエントリの既定の有効期間。
	DefaultSettingsCacheTTL = 5 * time.Minute

	settingsKeyPrefix = "embedgate:settings:"
)

// NewRedisClient はREDIS_URL形式のURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return client, nil
}

// RedisSettingsCache はSettingsRepositoryの前段に置くリードスルーキャッシュ。
// 存在する値のみをキャッシュし、書き込み時は該当キーを無効化する。
// Redisの障害時はバックエンドへフォールバックする。
type RedisSettingsCache struct {
	backend SettingsRepository
	client  redis.UniversalClient
	ttl     time.Duration
}

// NewRedisSettingsCache はRedisSettingsCacheを生成する。ttlが0以下の場合は既定値を使う。
func NewRedisSettingsCache(backend SettingsRepository, client redis.UniversalClient, ttl time.Duration) *RedisSettingsCache {
	if ttl <= 0 {
		ttl = DefaultSettingsCacheTTL
	}
	return &RedisSettingsCache{backend: backend, client: client, ttl: ttl}
}

// Get はキャッシュを参照し、ミスした場合はバックエンドから読み込んでキャッシュする。
func (c *RedisSettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	cacheKey := settingsKeyPrefix + key

	// 1. キャッシュ参照
	value, err := c.client.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		return value, true, nil
	case errors.Is(err, redis.Nil):
	default:
		slog.Warn("settings cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	// 2. バックエンドから読み込み
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}

	// 3. キャッシュへ保存
	if err := c.client.Set(ctx, cacheKey, value, c.ttl).Err(); err != nil {
		slog.Warn("settings cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return value, true, nil
}

// Set はバックエンドへ書き込み、キャッシュを無効化する。
func (c *RedisSettingsCache) Set(ctx context.Context, key, value string) error {
	if err := c.backend.Set(ctx, key, value); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// SetMany はバックエンドへ書き込み、対象キーのキャッシュを無効化する。
func (c *RedisSettingsCache) SetMany(ctx context.Context, values map[string]string) error {
	if err := c.backend.SetMany(ctx, values); err != nil {
		return err
	}
	c.invalidate(ctx, sortedKeys(values)...)
	return nil
}

// Delete はバックエンドから削除し、キャッシュを無効化する。
func (c *RedisSettingsCache) Delete(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *RedisSettingsCache) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = settingsKeyPrefix + k
	}
	if err := c.client.Del(ctx, cacheKeys...).Err(); err != nil {
		slog.Warn("settings cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}
