package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ciphercore.app/convo/core/db"
)

type Config struct {
	OTel       OTelConfig
	Pipeline   PipelineConfig
	LLM        LLMConfig
	Generation GenerationConfig
	Roster     RosterConfig
	Ledger     LedgerConfig
	ArangoDB   ArangoDBConfig
	SQLite     SQLiteConfig
	Env        string
	Port       string
	DB         db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type PipelineConfig struct {
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	TraceHeaderName string
	MaxAttempts     int
}

type LLMConfig struct {
	Provider  string // "openai", "anthropic" or "gemini"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// GenerationConfig controls the retry policy around every generation call.
type GenerationConfig struct {
	Cooldown   time.Duration // slept after every attempt
	BaseDelay  time.Duration // starting retry delay, doubled on rate limits
	MaxRetries int
}

type RosterConfig struct {
	Path string
}

type LedgerConfig struct {
	Backend  string // "file", "redis" or "arangodb"
	Path     string
	RedisKey string
}

type ArangoDBConfig struct {
	URL        string
	Username   string
	Password   string
	Database   string
	Collection string
}

type SQLiteConfig struct {
	Path string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the background worker
//   - .env.cli for the convo command
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("CONVO_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:  getEnv("CONVO_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "discussion_data.db"),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "convo"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", ""),
			RedisStream:     getEnv("REDIS_STREAM", "convo_runs"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "convo_group"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "convo_runs_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", string(serviceType)),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
			MaxAttempts:     getEnvInt("REDIS_MAX_ATTEMPTS", 3),
		},
		LLM: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "gemini"),
			APIKey:    getEnv("LLM_API_KEY", os.Getenv("API_KEY")),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			Model:     getEnv("LLM_MODEL", ""),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 2048),
			Timeout:   getEnvDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		Generation: GenerationConfig{
			Cooldown:   getEnvDuration("GENERATION_COOLDOWN", 10*time.Second),
			BaseDelay:  getEnvDuration("GENERATION_BASE_DELAY", 10*time.Second),
			MaxRetries: getEnvInt("GENERATION_MAX_RETRIES", 3),
		},
		Roster: RosterConfig{
			Path: getEnv("AGENT_CONFIG_FILE", "agent_config.json"),
		},
		Ledger: LedgerConfig{
			Backend:  getEnv("RATING_BACKEND", "file"),
			Path:     getEnv("RATING_DATA_FILE", "rating_data.json"),
			RedisKey: getEnv("RATING_REDIS_KEY", "convo:ratings"),
		},
		ArangoDB: ArangoDBConfig{
			URL:        getEnv("ARANGO_URL", ""),
			Username:   getEnv("ARANGO_USERNAME", ""),
			Password:   getEnv("ARANGO_PASSWORD", ""),
			Database:   getEnv("ARANGO_DATABASE", ""),
			Collection: getEnv("ARANGO_COLLECTION", "ratings"),
		},
	}

	// the command line tool checks this itself, only "convo run" needs a provider
	if serviceType != ServiceTypeCLI && !cfg.LLM.Enabled() {
		return Config{}, fmt.Errorf("LLM_API_KEY is required and LLM_PROVIDER must be openai, anthropic or gemini")
	}

	if cfg.Generation.MaxRetries < 0 {
		return Config{}, fmt.Errorf("GENERATION_MAX_RETRIES must not be negative")
	}

	if serviceType == ServiceTypeWorker && !cfg.Pipeline.Enabled() {
		return Config{}, fmt.Errorf("REDIS_URL is required for the worker")
	}

	switch cfg.Ledger.Backend {
	case "file", "redis", "arangodb":
	default:
		return Config{}, fmt.Errorf("unknown RATING_BACKEND %q", cfg.Ledger.Backend)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c PipelineConfig) Enabled() bool {
	return c.RedisURL != ""
}

func (c LLMConfig) Enabled() bool {
	switch c.Provider {
	case "openai", "anthropic", "gemini":
		return c.APIKey != ""
	}
	return false
}

func (c ArangoDBConfig) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Database != ""
}

func (c SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10s") and bare seconds ("10").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
