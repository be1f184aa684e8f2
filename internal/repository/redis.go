package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roombook/internal/config"
	"roombook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisOccupancyCache keeps one JSON document per room and date.
type RedisOccupancyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisOccupancyCache(client *redis.Client, ttl time.Duration) *RedisOccupancyCache {
	return &RedisOccupancyCache{
		client: client,
		ttl:    ttl,
	}
}

func occupancyKey(roomID int64, date time.Time) string {
	return fmt.Sprintf("occupancy:%d:%s", roomID, date.Format("2006-01-02"))
}

func (r *RedisOccupancyCache) GetDay(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, occupancyKey(roomID, date)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get occupancy from redis: %w", err)
	}

	var day models.DayOccupancy
	if err := json.Unmarshal([]byte(val), &day); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal occupancy: %w", err)
	}
	return day, true, nil
}

func (r *RedisOccupancyCache) SetDay(ctx context.Context, roomID int64, date time.Time, day models.DayOccupancy) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("failed to marshal occupancy: %w", err)
	}
	if err := r.client.Set(ctx, occupancyKey(roomID, date), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set occupancy in redis: %w", err)
	}
	return nil
}

func (r *RedisOccupancyCache) InvalidateDays(ctx context.Context, roomID int64, dates []time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(dates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, occupancyKey(roomID, d))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete occupancy from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
