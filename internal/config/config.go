package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"intranet-ai/internal/retriever"
)

// Config holds all configuration for the application.
type Config struct {
	CorpusRoot         string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	RBACMode           retriever.Mode
	RetrieveK          int
	MinChunkWords      int
	RetrievalTimeout   time.Duration
	IngestOnStartup    bool
	APIPort            string
	LogLevel           string
	LogFormat          string
}

// Load reads configuration from environment variables and returns a Config
// struct. It applies defaults for optional fields and validates required
// fields. If a .env file exists in the current directory or project root,
// it is loaded automatically; environment variables already set take
// precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a project-root .env next to go.mod.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		CorpusRoot:         getEnv("CORPUS_ROOT", ""),
		DBPath:             getEnv("DB_PATH", "./data/intranet-ai.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "corpus"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	if cfg.CorpusRoot == "" {
		return nil, fmt.Errorf("CORPUS_ROOT is required")
	}

	// Must match the output vector size of the embeddings model. If it
	// changes, the Qdrant collection must be rebuilt.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	mode := retriever.Mode(getEnv("RBAC_MODE", string(retriever.ModeHierarchy)))
	if mode != retriever.ModeStrict && mode != retriever.ModeHierarchy {
		return nil, fmt.Errorf("RBAC_MODE must be %q or %q, got %q", retriever.ModeStrict, retriever.ModeHierarchy, mode)
	}
	cfg.RBACMode = mode

	cfg.RetrieveK, err = getEnvInt("RETRIEVE_K", retriever.DefaultK)
	if err != nil {
		return nil, err
	}
	if cfg.RetrieveK <= 0 {
		return nil, fmt.Errorf("RETRIEVE_K must be greater than 0")
	}

	cfg.MinChunkWords, err = getEnvInt("MIN_CHUNK_WORDS", retriever.DefaultMinWords)
	if err != nil {
		return nil, err
	}
	if cfg.MinChunkWords < 0 {
		return nil, fmt.Errorf("MIN_CHUNK_WORDS must not be negative")
	}

	timeoutSeconds, err := getEnvInt("RETRIEVAL_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	if timeoutSeconds < 0 {
		return nil, fmt.Errorf("RETRIEVAL_TIMEOUT_SECONDS must not be negative")
	}
	cfg.RetrievalTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.IngestOnStartup, err = getEnvBool("INGEST_ON_STARTUP", false)
	if err != nil {
		return nil, err
	}

	// Create the data directory for the DB file if it doesn't exist.
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
