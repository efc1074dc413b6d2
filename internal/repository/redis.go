package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"receptionist/internal/config"
	"receptionist/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	profileKeyPrefix   = "receptionist:profile:"
	rateLimitKeyPrefix = "receptionist:rate:"
)

// RedisProfileCache keeps profiles as JSON strings with a TTL.
type RedisProfileCache struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisProfileCache(client *redis.Client) *RedisProfileCache {
	return &RedisProfileCache{client: client}
}

func (r *RedisProfileCache) GetProfile(ctx context.Context, businessID string) (*models.BusinessProfile, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, profileKeyPrefix+businessID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from redis: %w", err)
	}

	var profile models.BusinessProfile
	if err := json.Unmarshal([]byte(val), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (r *RedisProfileCache) SetProfile(ctx context.Context, profile *models.BusinessProfile, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := r.client.Set(ctx, profileKeyPrefix+profile.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set profile in redis: %w", err)
	}
	return nil
}

func (r *RedisProfileCache) InvalidateProfile(ctx context.Context, businessID string) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, profileKeyPrefix+businessID).Err(); err != nil {
		return fmt.Errorf("failed to delete profile from redis: %w", err)
	}
	return nil
}

// CheckRateLimit is a fixed-window counter: INCR, with EXPIRE on the first hit.
func (r *RedisProfileCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	redisKey := rateLimitKeyPrefix + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}
	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
