package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Assistant AssistantConfig
	Retrieval RetrievalConfig
	Threads   ThreadConfig
	Keys      APIKeys
}

type AppConfig struct {
	Environment string
	LogFilePath string
	NatsURL     string
	RedisURL    string
	UseRedis    bool
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string
	LLMModel          string
}

// AssistantConfig points at the remote completion/thread service.
type AssistantConfig struct {
	BaseURL     string
	APIKey      string
	AssistantID string
}

type RetrievalConfig struct {
	TopK              int
	MinRelevance      float64
	MaxContextLength  int
	ChunkSize         int
	ChunkOverlap      int
	LiveWindowDefault int
}

type ThreadConfig struct {
	PollAttempts         int
	PollDelaySeconds     int
	CleanupIntervalMin   int
	MaxThreadAgeHours    int
	IngestPollIntervalSec int
}

type APIKeys struct {
	GoogleGemini   string
	LiveEntryTopic string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "app.log.csv"),
			NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
			UseRedis:    getEnv("THREAD_CACHE_BACKEND", "memory") == "redis",
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Assistant: AssistantConfig{
			BaseURL:     getEnv("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("ASSISTANT_API_KEY", ""),
			AssistantID: getEnv("ASSISTANT_ID", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:              getEnvAsInt("RETRIEVAL_TOP_K", 10),
			MinRelevance:      getEnvAsFloat("RETRIEVAL_MIN_RELEVANCE", 0.35),
			MaxContextLength:  getEnvAsInt("RETRIEVAL_MAX_CONTEXT_LENGTH", 4000),
			ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 100),
			LiveWindowDefault: getEnvAsInt("LIVE_WINDOW_DEFAULT", 100),
		},
		Threads: ThreadConfig{
			PollAttempts:          getEnvAsInt("THREAD_POLL_ATTEMPTS", 30),
			PollDelaySeconds:      getEnvAsInt("THREAD_POLL_DELAY_SECONDS", 1),
			CleanupIntervalMin:    getEnvAsInt("THREAD_CLEANUP_INTERVAL_MINUTES", 10),
			MaxThreadAgeHours:     getEnvAsInt("THREAD_MAX_AGE_HOURS", 24),
			IngestPollIntervalSec: getEnvAsInt("INGEST_POLL_INTERVAL_SECONDS", 60),
		},
		Keys: APIKeys{
			GoogleGemini:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			LiveEntryTopic: getEnv("LIVE_ENTRY_TOPIC_NAME", "STORE_LIVE_ENTRY"),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
