package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is assembled once at startup and passed explicitly into
// component constructors. Core logic never reads the environment.
type Config struct {
	HTTPAddr string
	LogLevel string

	StoreBackend string // "postgres" or "memory"
	DatabaseURL  string

	RedisAddr string
	RedisDB   int

	Storage StorageConfig

	Embedding     EmbeddingConfig
	Transcription TranscriptionConfig
	Answer        AnswerConfig

	Chunking ChunkingConfig
	Search   SearchConfig
}

type StorageConfig struct {
	Backend    string // "minio" or "s3"
	Bucket     string
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
}

type EmbeddingConfig struct {
	Provider   string // "openai" or "mock"
	BaseURL    string
	APIKey     string
	Model      string
	BatchLimit int
	Timeout    time.Duration
}

type TranscriptionConfig struct {
	Provider string // "whisper" or "mock"
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type AnswerConfig struct {
	Provider string // "openai" or "mock"
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type ChunkingConfig struct {
	MaxTokens     int
	OverlapTokens int
}

type SearchConfig struct {
	FusionPoolSize int
	RRFConstant    int
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may come from the runtime directly.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		StoreBackend: envOr("STORE_BACKEND", "postgres"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		RedisDB:   envInt("REDIS_DB", 0),

		Storage: StorageConfig{
			Backend:   envOr("STORAGE_BACKEND", "minio"),
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			Region:    os.Getenv("STORAGE_REGION"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:    envBool("STORAGE_USE_SSL", false),
		},

		Embedding: EmbeddingConfig{
			Provider:   envOr("EMBEDDING_PROVIDER", "mock"),
			BaseURL:    envOr("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
			BatchLimit: envInt("EMBEDDING_BATCH_LIMIT", 128),
			Timeout:    envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Transcription: TranscriptionConfig{
			Provider: envOr("TRANSCRIPTION_PROVIDER", "mock"),
			BaseURL:  os.Getenv("TRANSCRIPTION_BASE_URL"),
			APIKey:   os.Getenv("TRANSCRIPTION_API_KEY"),
			Model:    envOr("TRANSCRIPTION_MODEL", "whisper-1"),
			Timeout:  envDuration("TRANSCRIPTION_TIMEOUT", 50*time.Minute),
		},
		Answer: AnswerConfig{
			Provider: envOr("ANSWER_PROVIDER", "mock"),
			BaseURL:  envOr("ANSWER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:   os.Getenv("ANSWER_API_KEY"),
			Model:    envOr("ANSWER_MODEL", "gpt-4o-mini"),
			Timeout:  envDuration("ANSWER_TIMEOUT", 60*time.Second),
		},

		Chunking: ChunkingConfig{
			MaxTokens:     envInt("CHUNK_MAX_TOKENS", 800),
			OverlapTokens: envInt("CHUNK_OVERLAP_TOKENS", 100),
		},
		Search: SearchConfig{
			FusionPoolSize: envInt("SEARCH_FUSION_POOL", 20),
			RRFConstant:    envInt("SEARCH_RRF_K", 60),
		},
	}

	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
