package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Matrix   MatrixConfig
	Events   EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig only carries verification material; tokens are issued by the auth service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MatrixConfig tunes the level progression engine.
type MatrixConfig struct {
	BootstrapSlotCount int
	PackageWindow      time.Duration
	PackageEvery       int
	ProgressCacheTTL   time.Duration
	LockNamespace      int
}

// EventsConfig configures domain event publishing to Kafka.
type EventsConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	WriteTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Matrix = MatrixConfig{
		BootstrapSlotCount: positiveOr(v.GetInt("MATRIX_BOOTSTRAP_SLOTS"), 100),
		PackageWindow:      parseDuration(v.GetString("MATRIX_PACKAGE_WINDOW"), 24*time.Hour),
		PackageEvery:       positiveOr(v.GetInt("MATRIX_PACKAGE_EVERY"), 5),
		ProgressCacheTTL:   parseDuration(v.GetString("MATRIX_PROGRESS_CACHE_TTL"), 5*time.Minute),
		LockNamespace:      v.GetInt("MATRIX_LOCK_NAMESPACE"),
	}

	cfg.Events = EventsConfig{
		Enabled:      v.GetBool("ENABLE_EVENTS"),
		Brokers:      splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:        v.GetString("KAFKA_TOPIC"),
		Workers:      positiveOr(v.GetInt("EVENTS_WORKERS"), 1),
		MaxRetries:   positiveOr(v.GetInt("EVENTS_MAX_RETRIES"), 3),
		RetryDelay:   parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
		DrainTimeout: parseDuration(v.GetString("EVENTS_DRAIN_TIMEOUT"), 10*time.Second),
		WriteTimeout: parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "donation_matrix")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MATRIX_BOOTSTRAP_SLOTS", 100)
	v.SetDefault("MATRIX_PACKAGE_WINDOW", "24h")
	v.SetDefault("MATRIX_PACKAGE_EVERY", 5)
	v.SetDefault("MATRIX_PROGRESS_CACHE_TTL", "5m")
	v.SetDefault("MATRIX_LOCK_NAMESPACE", 7100)

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "donation-matrix.events")
	v.SetDefault("EVENTS_WORKERS", 1)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")
	v.SetDefault("EVENTS_DRAIN_TIMEOUT", "10s")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
