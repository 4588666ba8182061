package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIToken string

	// Storage
	StoreDriver string // memory | sqlite | postgres
	SQLitePath  string
	PostgresDSN string

	// Uploads
	UploadDir      string
	MaxUploadBytes int64

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Embedding
	EmbedDim         int
	EmbedConcurrency int

	// Retrieval
	TopK int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int
	MaxRetries   int

	// AI cleanup (disabled when the API key is empty)
	AnthropicAPIKey  string
	CleanupModel     string
	CleanupBaseURL   string
	CleanupMaxTokens int
	CleanupTimeout   time.Duration
	CleanupRPS       float64

	// External extraction services (each disabled when its URL is empty)
	OCRBaseURL string
	OCRToken   string
	STTBaseURL string
	STTToken   string

	// PDF
	PDFFallbackPdftotext bool

	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, falling back to a
// .env file in the working directory for local development. Every key
// has a usable default except the external service credentials.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8080"),

		APIToken: os.Getenv("API_TOKEN"),

		StoreDriver: envOr("STORE_DRIVER", "sqlite"),
		SQLitePath:  envOr("SQLITE_PATH", "./data/studydesk.db"),
		PostgresDSN: os.Getenv("DATABASE_URL"),

		UploadDir:      envOr("UPLOAD_DIR", "./data/uploads"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkSize:    envInt("CHUNK_SIZE", 500),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 50),

		EmbedDim:         envInt("EMBED_DIM", 768),
		EmbedConcurrency: envInt("EMBED_CONCURRENCY", 4),

		TopK: envInt("RETRIEVE_TOP_K", 5),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		MaxRetries:   envInt("MAX_RETRIES", 3),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		CleanupModel:     envOr("CLEANUP_MODEL", "claude-3-5-haiku-20241022"),
		CleanupBaseURL:   envOr("CLEANUP_BASE_URL", "https://api.anthropic.com"),
		CleanupMaxTokens: envInt("CLEANUP_MAX_TOKENS", 4096),
		CleanupTimeout:   envDuration("CLEANUP_TIMEOUT", 120*time.Second),
		CleanupRPS:       envFloat("CLEANUP_RPS", 1),

		OCRBaseURL: os.Getenv("OCR_BASE_URL"),
		OCRToken:   os.Getenv("OCR_TOKEN"),
		STTBaseURL: os.Getenv("STT_BASE_URL"),
		STTToken:   os.Getenv("STT_TOKEN"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 50
	}
	if cfg.EmbedDim <= 0 {
		cfg.EmbedDim = 768
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CleanupRPS <= 0 {
		cfg.CleanupRPS = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

// Validate rejects configurations the service cannot start with. An
// empty APIToken is allowed and disables request authentication.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
