package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"intranet-ai/internal/retriever"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"CORPUS_ROOT", "QDRANT_VECTOR_SIZE",
	"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
	"DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION", "API_PORT",
	"RBAC_MODE", "RETRIEVE_K", "MIN_CHUNK_WORDS",
	"RETRIEVAL_TIMEOUT_SECONDS", "INGEST_ON_STARTUP",
	"LOG_LEVEL", "LOG_FORMAT",
}

func TestLoad(t *testing.T) {
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with all required fields",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.CorpusRoot != "" && cfg.QdrantVectorSize == 768
			},
		},
		{
			name: "missing CORPUS_ROOT",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: true,
		},
		{
			name: "missing QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
			},
			wantErr: true,
		},
		{
			name: "invalid QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "default values for optional fields",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMBaseURL == "http://localhost:8080" &&
					cfg.LLMModelName == "Llama-3.1-8B-Instruct" &&
					cfg.LLMAPIKey == "dummy-key" &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.DBPath == "./data/intranet-ai.db" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.QdrantCollection == "corpus" &&
					cfg.APIPort == "9000" &&
					cfg.RBACMode == retriever.ModeHierarchy &&
					cfg.RetrieveK == retriever.DefaultK &&
					cfg.MinChunkWords == retriever.DefaultMinWords &&
					cfg.RetrievalTimeout == 30*time.Second &&
					!cfg.IngestOnStartup &&
					cfg.LogLevel == "info" &&
					cfg.LogFormat == "text"
			},
		},
		{
			name: "custom retrieval settings",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RBAC_MODE", "strict")
				setEnv("RETRIEVE_K", "5")
				setEnv("MIN_CHUNK_WORDS", "0")
				setEnv("RETRIEVAL_TIMEOUT_SECONDS", "10")
				setEnv("INGEST_ON_STARTUP", "true")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.RBACMode == retriever.ModeStrict &&
					cfg.RetrieveK == 5 &&
					cfg.MinChunkWords == 0 &&
					cfg.RetrievalTimeout == 10*time.Second &&
					cfg.IngestOnStartup
			},
		},
		{
			name: "invalid RBAC_MODE",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RBAC_MODE", "permissive")
			},
			wantErr: true,
		},
		{
			name: "invalid RETRIEVE_K",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RETRIEVE_K", "0")
			},
			wantErr: true,
		},
		{
			name: "negative MIN_CHUNK_WORDS",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("MIN_CHUNK_WORDS", "-1")
			},
			wantErr: true,
		},
		{
			name: "invalid INGEST_ON_STARTUP",
			setupEnv: func(t *testing.T) {
				setEnv("CORPUS_ROOT", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("INGEST_ON_STARTUP", "maybe")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Change to a temp directory without a .env file to avoid loading one
			tmpDir := t.TempDir()
			originalWd, _ := os.Getwd()
			_ = os.Chdir(tmpDir)
			defer func() {
				_ = os.Chdir(originalWd)
			}()

			for _, key := range envVars {
				unsetEnv(key)
			}
			defer func() {
				for key, value := range originalEnv {
					if value != "" {
						setEnv(key, value)
					} else {
						unsetEnv(key)
					}
				}
			}()

			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "data", "db.db")

	setEnv("CORPUS_ROOT", t.TempDir())
	setEnv("QDRANT_VECTOR_SIZE", "768")
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}
