// Command docqa serves the document question answering API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/sweetpotato0/docqa/contrib/chunking/markdown"
	embedopenai "github.com/sweetpotato0/docqa/contrib/embedder/openai"
	"github.com/sweetpotato0/docqa/contrib/provider/claude"
	"github.com/sweetpotato0/docqa/contrib/provider/gemini"
	provopenai "github.com/sweetpotato0/docqa/contrib/provider/openai"
	"github.com/sweetpotato0/docqa/contrib/reranker/tei"
	"github.com/sweetpotato0/docqa/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/docqa/contrib/vector/inmemory"
	"github.com/sweetpotato0/docqa/contrib/vector/pg"

	"github.com/sweetpotato0/docqa/config"
	"github.com/sweetpotato0/docqa/history"
	"github.com/sweetpotato0/docqa/ingest"
	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"github.com/sweetpotato0/docqa/rag/retriever"
	"github.com/sweetpotato0/docqa/server"
	"github.com/sweetpotato0/docqa/session"
	sessionstore "github.com/sweetpotato0/docqa/session/store"
	"github.com/sweetpotato0/docqa/vector"
	"github.com/sweetpotato0/docqa/websearch"
	"github.com/sweetpotato0/docqa/workflow"
)

// chunkTokenBudget caps every indexed chunk; oversized chunks are truncated
// at a token boundary before embedding.
const chunkTokenBudget = 512

func main() {
	logger := logging.WithComponent("main")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "docqa",
		Environment: os.Getenv("DOCQA_ENVIRONMENT"),
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	client, err := buildProvider(ctx, cfg)
	if err != nil {
		logger.Error("failed to build llm provider", "error", err)
		os.Exit(1)
	}

	store, err := buildVectorStore(cfg)
	if err != nil {
		logger.Error("failed to build vector store", "error", err)
		os.Exit(1)
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}
	embedder := embedopenai.New(cfg.EmbedAPIKey, "", openaisdk.EmbeddingModel(embedModel), cfg.PGDimension)

	rr := reranker.NewCrossEncoder(tei.New(cfg.RerankerURL), reranker.WithTopN(cfg.Engine.RerankTopN))
	ret := retriever.New(store, embedder)

	engineOpts := []workflow.Option{workflow.WithConfig(cfg.Engine)}
	workflows := map[string]server.Workflow{
		"basic":      workflow.NewBasic(client, ret, rr, engineOpts...),
		"suggestion": workflow.NewSuggestion(client, ret, rr, engineOpts...),
	}
	if cfg.TavilyAPIKey != "" {
		searcher := websearch.NewTavilyClient(cfg.TavilyAPIKey)
		workflows["search"] = workflow.NewSearch(client, ret, rr, searcher, engineOpts...)
	} else {
		logger.Warn("tavily api key not set, search workflow disabled")
	}

	ingestOpts := []ingest.Option{
		ingest.WithMarkdownChunker(markdown.New()),
	}
	if counter, err := tiktoken.New("cl100k_base"); err == nil {
		ingestOpts = append(ingestOpts, ingest.WithTokenBudget(counter, chunkTokenBudget))
	} else {
		logger.Warn("tokenizer unavailable, chunk token budget disabled", "error", err)
	}
	ingestService := ingest.NewService(store, embedder, ingestOpts...)

	sessions, err := buildSessionStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to build session store", "error", err)
		os.Exit(1)
	}

	var runs history.Store = history.NopStore{}
	if cfg.MongoURI != "" {
		mongoStore, err := history.NewMongoStore(&history.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			logger.Error("failed to connect run history store", "error", err)
			os.Exit(1)
		}
		defer mongoStore.Close(context.Background())
		runs = mongoStore
	}

	srv := server.New(cfg.ListenAddr, workflows, ingestService,
		server.WithSessionStore(sessions),
		server.WithHistoryStore(runs),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}
}

func buildProvider(ctx context.Context, cfg config.Service) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		pc := provopenai.DefaultConfig(cfg.APIKey)
		if cfg.Model != "" {
			pc.Model = cfg.Model
		}
		return provopenai.New(pc), nil
	case "claude":
		cc := claude.DefaultConfig(cfg.APIKey)
		if cfg.Model != "" {
			cc.Model = cfg.Model
		}
		return claude.New(cc), nil
	case "gemini":
		gc := gemini.DefaultConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		return gemini.New(ctx, gc)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildVectorStore(cfg config.Service) (vector.VectorStore, error) {
	switch cfg.VectorBackend {
	case "pg":
		return pg.NewStore(&pg.Config{
			Host:      cfg.PGHost,
			Port:      cfg.PGPort,
			User:      cfg.PGUser,
			Password:  cfg.PGPassword,
			DBName:    cfg.PGDatabase,
			SSLMode:   cfg.PGSSLMode,
			Dimension: cfg.PGDimension,
		})
	default:
		return inmemory.NewStore(), nil
	}
}

func buildSessionStore(ctx context.Context, cfg config.Service) (session.Store, error) {
	switch cfg.SessionBackend {
	case "redis":
		store := sessionstore.NewRedisStore(&sessionstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return sessionstore.NewInMemoryStore(), nil
	}
}
