package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/infra/setup"
	redisstate "github.com/s-renren/Fireworks-Display-Online/internal/infra/state/redis"
)

// Config holds everything read from the environment.
type Config struct {
	StorageDriver      string
	DB                 setup.DBConfig
	Redis              setup.RedisConfig
	KeyPrefix          string
	JWTSecret          string
	JWTExpiryHours     int
	ServerPort         string
	LogLevel           string
	AppEnv             string
	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	WorkerConcurrency  int
	OccupancySchedule  string
}

// LoadConfig reads the configuration from the environment, after loading a .env file if present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StorageDriver: strings.ToLower(envOr("STORAGE_DRIVER", setup.DriverMySQL)),
		Redis: setup.RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		KeyPrefix:          envOr("REDIS_KEY_PREFIX", redisstate.DefaultKeyPrefix),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ServerPort:         envOr("SERVER_PORT", "8080"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		AppEnv:             envOr("APP_ENV", "development"),
		CORSAllowedOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		OccupancySchedule:  envOr("OCCUPANCY_SCHEDULE", "@every 1m"),
	}
	cfg.DB = setup.DBConfig{
		Driver:   cfg.StorageDriver,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_NAME"),
	}

	var err error
	if cfg.Redis.DB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = envInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = envInt("WORKER_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = time.ParseDuration(envOr("RATE_LIMIT_WINDOW", "1s")); err != nil {
		return nil, fmt.Errorf("environment variable RATE_LIMIT_WINDOW is not a duration: %w", err)
	}

	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.StorageDriver {
	case setup.DriverMySQL, setup.DriverPostgres:
		if cfg.DB.User == "" || cfg.DB.Host == "" || cfg.DB.Name == "" {
			return nil, fmt.Errorf("DB_USER, DB_HOST and DB_NAME must be set for storage driver %q", cfg.StorageDriver)
		}
	case setup.DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s is not an integer: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
