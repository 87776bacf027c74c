package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Auth       AuthConfig       `yaml:"auth"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Market     MarketConfig     `yaml:"market"`
	Redis      RedisConfig      `yaml:"redis"`
	Pumps      PumpsConfig      `yaml:"pumps"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// AuthConfig – учётная запись администратора, которую сервер заводит при старте.
// Без ADMIN_PASSWORD администратор не создаётся: саморегистрация прав не даёт.
type AuthConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"-" env:"ADMIN_PASSWORD"`
}

// LedgerConfig – начальный баланс нового портфеля, десятичная строка.
type LedgerConfig struct {
	InitialCash string `yaml:"initial_cash" env-default:"10000"`
}

// MarketConfig источник цен: static – цены из конфига, coingecko – HTTP API.
type MarketConfig struct {
	Provider string            `yaml:"provider" env-default:"static"`
	BaseURL  string            `yaml:"base_url" env-default:"https://api.coingecko.com/api/v3"`
	Timeout  time.Duration     `yaml:"timeout" env-default:"5s"`
	Prices   map[string]string `yaml:"prices"`
}

// RedisConfig – кэш цен; пустой адрес отключает кэширование.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env-default:"0"`
	PriceTTL time.Duration `yaml:"price_ttl" env-default:"60s"`
}

// PumpsConfig – cron-расписание обработки пампов; пусто – только по запросу.
type PumpsConfig struct {
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout" env-default:"30s"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env-default:"10"`
	Burst int     `yaml:"burst" env-default:"20"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
