package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/linemk/sim-exchange/internal/config"
	"github.com/linemk/sim-exchange/internal/market"
	"github.com/redis/go-redis/v9"
)

const (
	ProviderStatic    = "static"
	ProviderCoinGecko = "coingecko"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	// Redis равен nil, если кэш цен не настроен.
	Redis  *redis.Client
	Prices market.PriceSource
}

// NewApp создаёт новый экземпляр App: подключение к БД и источник цен.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	source, err := NewPriceSource(cfg.Market)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.Prices = source

	if cfg.Redis.Address != "" {
		rdb, err := market.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = rdb
		app.Prices = market.NewCachedSource(log, rdb, source, cfg.Redis.PriceTTL)
		log.Info("price cache enabled", slog.String("redis", cfg.Redis.Address), slog.Duration("ttl", cfg.Redis.PriceTTL))
	}

	return app, nil
}

// Close освобождает подключения к БД и Redis.
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis", slog.Any("error", err))
		}
	}
	return a.DB.Close()
}

// DSN собирает строку подключения к postgres.
func DSN(dbCfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
	)
}

// NewPriceSource выбирает источник цен по настройке provider.
func NewPriceSource(cfg config.MarketConfig) (market.PriceSource, error) {
	switch cfg.Provider {
	case ProviderStatic, "":
		source, err := market.NewStaticSource(cfg.Prices)
		if err != nil {
			return nil, fmt.Errorf("failed to build static price source: %w", err)
		}
		return source, nil
	case ProviderCoinGecko:
		return market.NewCoinGeckoSource(cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Provider)
	}
}
