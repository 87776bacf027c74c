package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/redis/go-redis/v9"
)

const priceKeyPrefix = "price:"

// CachedSource кладёт цены в Redis с явным TTL. Ошибки Redis не мешают
// получить цену: запрос уходит в исходный источник.
type CachedSource struct {
	log  *slog.Logger
	rdb  *redis.Client
	next PriceSource
	ttl  time.Duration
}

func NewCachedSource(log *slog.Logger, rdb *redis.Client, next PriceSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		log:  log,
		rdb:  rdb,
		next: next,
		ttl:  ttl,
	}
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *CachedSource) GetCurrentPrice(ctx context.Context, coinID string) (money.Money, error) {
	const op = "market.CachedSource.GetCurrentPrice"
	logger := c.log.With(slog.String("op", op), slog.String("coinID", coinID))
	key := priceKeyPrefix + coinID

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		price, parseErr := money.Parse(cached)
		if parseErr == nil {
			return price, nil
		}
		logger.Warn("dropping malformed cached price", slog.String("value", cached))
	case !errors.Is(err, redis.Nil):
		logger.Warn("price cache unavailable", slog.Any("error", err))
	}

	price, err := c.next.GetCurrentPrice(ctx, coinID)
	if err != nil {
		return money.Zero, err
	}

	if err := c.rdb.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		logger.Warn("failed to cache price", slog.Any("error", err))
	}
	return price, nil
}
