package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr   string
	CORSOrigin string

	DBDriver string // mysql | sqlite
	DBDSN    string

	JWTSecret string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SummaryCacheTTL time.Duration

	// consult sessions
	PurgeDelay         time.Duration
	MirrorTimeout      time.Duration
	WaitingExcludeRole string

	// summaries
	SummaryMessageLimit int
	AutoSummary         bool

	// AI provider
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	OpenAIAPIKey      string
	OpenAIModel       string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	driver := strings.ToLower(getenv("DB_DRIVER", "mysql"))

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/consult_desk?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch driver {
		case "sqlite":
			dsn = "consult_desk.db"
		default:
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				"app", "apppass", "127.0.0.1", "3306", "consult_desk",
			)
		}
	}

	return Config{
		HTTPAddr:   getenv("HTTP_ADDR", ":3000"),
		CORSOrigin: getenv("CORS_ORIGIN", "http://localhost:5173"),

		DBDriver: driver,
		DBDSN:    dsn,

		JWTSecret: getenv("JWT_SECRET", "dev-secret-change-me"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		SummaryCacheTTL: getDuration("SUMMARY_CACHE_TTL", 10*time.Minute),

		PurgeDelay:         getDuration("PURGE_DELAY", 30*time.Minute),
		MirrorTimeout:      getDuration("MIRROR_TIMEOUT", 5*time.Second),
		WaitingExcludeRole: getenv("WAITING_EXCLUDE_ROLE", "ADMIN"),

		SummaryMessageLimit: getInt("SUMMARY_MESSAGE_LIMIT", 160),
		AutoSummary:         getBool("AUTO_SUMMARY", false),

		AIProvider:        strings.ToLower(getenv("AI_PROVIDER", "openai")),
		OllamaBaseURL:     getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getenv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getenv("OPENAI_MODEL", "gpt-4o-mini"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "consult_summary_jobs"),
		WorkerConcurrency: clamp(getInt("WORKER_CONCURRENCY", 2), 1, 50),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}
}

// Validate reports settings the selected AI provider cannot run without.
func (c Config) Validate() error {
	switch c.AIProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for AI_PROVIDER=openai")
		}
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for AI_PROVIDER=openrouter")
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER=%q", c.AIProvider)
	}
	if c.SummaryMessageLimit <= 0 {
		return fmt.Errorf("SUMMARY_MESSAGE_LIMIT must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
