package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/reporting"
)

// ReportCache — Redis-реализация кэша отчётов (cache-aside).
// Промах и ошибка различаются: промах не является ошибкой.
type ReportCache struct {
	client *redis.Client
}

// NewReportCache создаёт кэш поверх готового клиента Redis.
func NewReportCache(client *redis.Client) *ReportCache {
	return &ReportCache{client: client}
}

// Connect открывает соединение с Redis и проверяет его ping-ом.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get возвращает закэшированное значение и признак попадания.
func (c *ReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set сохраняет значение с TTL.
func (c *ReportCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

var _ reporting.ReportCache = (*ReportCache)(nil)
