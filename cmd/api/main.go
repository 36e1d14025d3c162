package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"sort"

	"intranet-ai/internal/config"
	"intranet-ai/internal/corpus"
	"intranet-ai/internal/http"
	"intranet-ai/internal/indexer"
	"intranet-ai/internal/llm"
	"intranet-ai/internal/rag"
	"intranet-ai/internal/rbac"
	"intranet-ai/internal/retriever"
	"intranet-ai/internal/storage"
	"intranet-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantVectorSize)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	slog.Info("Qdrant client ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	tokenizer := llm.NewTokenizerClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Access policy and corpus
	policy := rbac.DefaultPolicy()
	readers := corpus.DefaultReaders()
	scanner := corpus.NewScanner(cfg.CorpusRoot, readers)
	slog.Info("Corpus configured", "root", cfg.CorpusRoot, "roles", policy.Roles())

	// Ingestion pipeline
	chunker := indexer.NewChunker(tokenizer, readers, policy)
	pipeline := indexer.NewPipeline(policy, scanner, chunker, embedder, chunkRepo, vectorStore)

	// Role-filtered retrieval and answering
	secureRetriever := retriever.NewSecureRetriever(
		policy,
		embedder,
		vectorStore,
		chunkRepo,
		retriever.WithK(cfg.RetrieveK),
		retriever.WithMinWords(cfg.MinChunkWords),
		retriever.WithMode(cfg.RBACMode),
		retriever.WithTimeout(cfg.RetrievalTimeout),
	)
	engine := rag.NewEngine(secureRetriever, llmClient)
	slog.Info("RAG engine initialized", "rbac_mode", cfg.RBACMode, "k", cfg.RetrieveK)

	deps := &http.Deps{
		Engine:      engine,
		Pipeline:    pipeline,
		VectorStore: vectorStore,
		ChunkStore:  chunkRepo,
	}
	router := http.NewRouter(deps)

	// Rebuild the index in the background after the router is ready
	if cfg.IngestOnStartup {
		go func() {
			ingestCtx := context.Background()
			slog.Info("Starting background ingestion of corpus")
			stats, err := pipeline.IngestAll(ingestCtx)
			if err != nil {
				slog.Error("Ingestion completed with errors", "error", err)
				return
			}
			logIngestionSummary(stats)
		}()
	}

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// logIngestionSummary reports per-category chunk counts in category order
// plus the run totals.
func logIngestionSummary(stats *indexer.IngestionStats) {
	categories := make([]string, 0, len(stats.ChunksPerCategory))
	for category := range stats.ChunksPerCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		slog.Info("Ingested category", "category", category, "chunks", stats.ChunksPerCategory[category])
	}
	slog.Info("Ingestion completed",
		"documents", stats.TotalDocuments,
		"chunks", stats.TotalChunks,
	)
}
