// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Log       LogConfig
	Stock     StockConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	AI        AIConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds database connection settings.
// Driver is "postgres" (default) or "sqlite"; for sqlite, DBName is the file path.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// RawDSN overrides the individual fields when set (DATABASE_DSN).
	RawDSN string
	Debug  bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level             string
	Encoding          string
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
}

// Negative balance policies for global stock.
const (
	NegativeStockAllow  = "allow"
	NegativeStockReject = "reject"
)

// StockConfig holds stock ledger settings.
type StockConfig struct {
	NegativePolicy string
}

// RedisConfig holds the answer cache connection. Empty Addr disables redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds stock notification settings. No brokers means notifications are dropped.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	ClientID    string
}

// AIConfig holds the text-generation provider settings.
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// RateLimitConfig holds the assistant rate limit, formatted like "20-M".
type RateLimitConfig struct {
	Assistant string
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	if d.Driver == "sqlite" {
		return d.DBName
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	dev := getEnvBool("DEV", true)
	aiProvider := strings.ToLower(getEnv("AI_PROVIDER", "openai"))
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "inventario"),
			Password: getEnv("DB_PASSWORD", "inventario123"),
			DBName:   getEnv("DB_NAME", "inventario"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			RawDSN:   os.Getenv("DATABASE_DSN"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        dev,
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),
		},
		Log: LogConfig{
			Level:             getEnv("LOG_LEVEL", "info"),
			Encoding:          getEnv("LOG_ENCODING", "json"),
			Development:       dev,
			DisableCaller:     getEnvBool("LOG_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOG_DISABLE_STACKTRACE", true),
		},
		Stock: StockConfig{
			NegativePolicy: strings.ToLower(getEnv("STOCK_NEGATIVE_POLICY", NegativeStockAllow)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("ASSISTANT_CACHE_TTL", 3600)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS"),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
			ClientID:    getEnv("KAFKA_CLIENT_ID", "inventariopro"),
		},
		AI: AIConfig{
			Provider:    aiProvider,
			APIKey:      aiKey(aiProvider),
			BaseURL:     getEnv("AI_BASE_URL", defaultBaseURL(aiProvider)),
			Model:       getEnv("AI_MODEL", "gpt-4o-mini"),
			Temperature: float32(getEnvFloat("AI_TEMPERATURE", 0.7)),
			MaxTokens:   getEnvInt("AI_MAX_TOKENS", 512),
			Timeout:     time.Duration(getEnvInt("AI_TIMEOUT", 20)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Assistant: getEnv("ASSISTANT_RATE_LIMIT", "20-M"),
		},
	}
}

// aiKey picks the provider specific key, falling back to AI_API_KEY.
func aiKey(provider string) string {
	key := "OPENAI_API_KEY"
	if provider == "openrouter" {
		key = "OPENROUTER_API_KEY"
	}
	return getEnv(key, os.Getenv("AI_API_KEY"))
}

func defaultBaseURL(provider string) string {
	if provider == "openrouter" {
		return "https://openrouter.ai/api/v1"
	}
	return ""
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
