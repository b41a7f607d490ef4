package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Ai       AIConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SyncLogFilePath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	EventsChannel      string // redis pub/sub channel for cross-instance fan-out
	SaveCellsTopic     string // watermill topic carrying persistence batches
}

type DatabaseConfig struct {
	Connection string
}

// SyncConfig tunes the document engine of every open session.
type SyncConfig struct {
	SaveInterval    time.Duration // debounce of the persistence bridge
	WriteTimeout    time.Duration
	SplitMode       string // "none", "headings" or "blocks"
	SplitMaxLevel   int
	SessionIdleTTL  time.Duration // idle engines are flushed and torn down
	WorkerQueueSize int
}

type AIConfig struct {
	LLMProvider   string // "ollama" or "huggingface"
	LLMModel      string
	OllamaBaseURL string
	HFToken       string
	HFBaseURL     string
	SystemPrompt  string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.json"),
			SyncLogFilePath:    getEnv("SYNC_LOG_FILE_PATH", "sync.log.json"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			EventsChannel:      getEnv("EVENTS_CHANNEL", "notebook_events"),
			SaveCellsTopic:     getEnv("SAVE_CELLS_TOPIC_NAME", "SAVE_CELLS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Sync: SyncConfig{
			SaveInterval:    getEnvAsDuration("SYNC_SAVE_INTERVAL", 750*time.Millisecond),
			WriteTimeout:    getEnvAsDuration("SYNC_WRITE_TIMEOUT", 10*time.Second),
			SplitMode:       getEnv("SYNC_SPLIT_MODE", "none"),
			SplitMaxLevel:   getEnvAsInt("SYNC_SPLIT_MAX_LEVEL", 2),
			SessionIdleTTL:  getEnvAsDuration("SYNC_SESSION_IDLE_TTL", 30*time.Minute),
			WorkerQueueSize: getEnvAsInt("SYNC_WORKER_QUEUE_SIZE", 256),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HFToken:       getEnv("HF_TOKEN", ""),
			HFBaseURL:     getEnv("HF_BASE_URL", "https://router.huggingface.co/v1"),
			SystemPrompt:  getEnv("LLM_SYSTEM_PROMPT", "You are a research assistant. Answer in Markdown."),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-notebook-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("750ms") or plain milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
