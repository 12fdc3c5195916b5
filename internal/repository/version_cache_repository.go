package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auth-session-server/config"
	"auth-session-server/internal/util"

	"github.com/redis/go-redis/v9"
)

// VersionCacheRepository : сквозной кэш версий токенов в Redis.
// Пишется при каждом поднятии версии, поэтому kill-switch срабатывает
// сразу, а не по истечении TTL
type VersionCacheRepository struct {
	client *config.RedisClient
	ttl    time.Duration
}

func NewVersionCacheRepository(rdb *config.RedisClient, ttl time.Duration) *VersionCacheRepository {
	return &VersionCacheRepository{rdb, ttl}
}

func (r *VersionCacheRepository) GetTokenVersion(ctx context.Context, userID int64) (int64, bool, error) {
	val, err := r.client.Client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // нет в кэше
	} else if err != nil {
		return 0, false, util.LogError("ошибка чтения версии токенов из Redis", err)
	}

	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, util.LogError("битое значение версии токенов в кэше", err)
	}
	return version, true, nil
}

func (r *VersionCacheRepository) SetTokenVersion(ctx context.Context, userID int64, version int64) error {
	if err := r.client.Client.Set(ctx, r.key(userID), version, r.ttl).Err(); err != nil {
		return util.LogError("ошибка сохранения версии токенов в Redis", err)
	}
	return nil
}

// WarmTokenVersion пишет версию через SETNX: ключ заполняется, только если
// его еще нет. Значение, записанное конкурентным поднятием версии,
// прогрев не перезапишет
func (r *VersionCacheRepository) WarmTokenVersion(ctx context.Context, userID int64, version int64) error {
	if err := r.client.Client.SetNX(ctx, r.key(userID), version, r.ttl).Err(); err != nil {
		return util.LogError("ошибка прогрева версии токенов в Redis", err)
	}
	return nil
}

func (r *VersionCacheRepository) InvalidateTokenVersion(ctx context.Context, userID int64) error {
	if err := r.client.Client.Del(ctx, r.key(userID)).Err(); err != nil {
		return util.LogError("ошибка удаления версии токенов из Redis", err)
	}
	return nil
}

func (r *VersionCacheRepository) key(userID int64) string {
	return fmt.Sprintf("user:token_version:%d", userID)
}
