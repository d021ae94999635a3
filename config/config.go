// Package config carries externally supplied settings for the engine and the
// service binary.
package config

import (
	"os"
	"strconv"
	"time"
)

// Engine holds the knobs of the question answering workflows.
type Engine struct {
	// RetrievalTopK is how many chunks similarity search returns.
	RetrievalTopK int
	// RerankTopN is how many chunks survive reranking.
	RerankTopN int
	// ConfidenceThreshold is the minimum confidence for an answer to be
	// accepted without falling back.
	ConfidenceThreshold float64
	// MaxRewriteIterations bounds the web-search/rewrite loop.
	MaxRewriteIterations int
	// NodeTimeout bounds each external call made by a workflow node.
	NodeTimeout time.Duration
	// WebSearchResults is how many web results a search node requests.
	WebSearchResults int
}

// DefaultEngine returns the engine defaults matching the original system.
func DefaultEngine() Engine {
	return Engine{
		RetrievalTopK:        5,
		RerankTopN:           3,
		ConfidenceThreshold:  0.9,
		MaxRewriteIterations: 3,
		NodeTimeout:          60 * time.Second,
		WebSearchResults:     3,
	}
}

// Validate reports invalid engine settings.
func (e Engine) Validate() error {
	v := NewValidator()
	v.RequirePositive("retrievalTopK", e.RetrievalTopK)
	v.RequirePositive("rerankTopN", e.RerankTopN)
	v.ValidateFloatRange("confidenceThreshold", e.ConfidenceThreshold, 0.0, 1.0)
	v.RequirePositive("maxRewriteIterations", e.MaxRewriteIterations)
	v.RequirePositive("webSearchResults", e.WebSearchResults)
	if e.NodeTimeout <= 0 {
		v.RequirePositive("nodeTimeout", int(e.NodeTimeout))
	}
	return v.Error()
}

// Service holds process-level settings for the docqa binary.
type Service struct {
	ListenAddr string

	Provider     string // openai, claude, gemini
	APIKey       string
	Model        string
	EmbedAPIKey  string
	EmbedModel   string
	RerankerURL  string
	TavilyAPIKey string

	VectorBackend string // inmemory, pg
	PGHost        string
	PGPort        int
	PGUser        string
	PGPassword    string
	PGDatabase    string
	PGSSLMode     string
	PGDimension   int

	SessionBackend string // inmemory, redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	MongoURI        string // empty disables run auditing
	MongoDatabase   string
	MongoCollection string

	Engine Engine
}

// Validate reports invalid service settings.
func (s Service) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("listenAddr", s.ListenAddr)
	v.ValidateOneOf("provider", s.Provider, "openai", "claude", "gemini")
	v.RequireNonEmpty("apiKey", s.APIKey)
	v.ValidateOneOf("vectorBackend", s.VectorBackend, "inmemory", "pg")
	v.ValidateOneOf("sessionBackend", s.SessionBackend, "inmemory", "redis")
	if s.VectorBackend == "pg" {
		v.RequireNonEmpty("pgHost", s.PGHost)
		v.ValidatePort("pgPort", s.PGPort)
		v.RequireNonEmpty("pgUser", s.PGUser)
		v.RequireNonEmpty("pgDatabase", s.PGDatabase)
		v.ValidateOneOf("pgSSLMode", s.PGSSLMode, "disable", "require", "verify-ca", "verify-full")
		v.ValidateRange("pgDimension", s.PGDimension, 1, 65535)
	}
	if s.SessionBackend == "redis" {
		v.RequireNonEmpty("redisAddr", s.RedisAddr)
		v.ValidateRange("redisDB", s.RedisDB, 0, 15)
	}
	if err := s.Engine.Validate(); err != nil {
		return err
	}
	return v.Error()
}

// FromEnv builds the service config from DOCQA_* environment variables,
// falling back to development defaults.
func FromEnv() Service {
	return Service{
		ListenAddr: envString("DOCQA_LISTEN_ADDR", ":8080"),

		Provider:     envString("DOCQA_PROVIDER", "gemini"),
		APIKey:       os.Getenv("DOCQA_API_KEY"),
		Model:        os.Getenv("DOCQA_MODEL"),
		EmbedAPIKey:  envString("DOCQA_EMBED_API_KEY", os.Getenv("DOCQA_API_KEY")),
		EmbedModel:   os.Getenv("DOCQA_EMBED_MODEL"),
		RerankerURL:  envString("DOCQA_RERANKER_URL", "http://127.0.0.1:8081"),
		TavilyAPIKey: os.Getenv("DOCQA_TAVILY_API_KEY"),

		VectorBackend: envString("DOCQA_VECTOR_BACKEND", "inmemory"),
		PGHost:        envString("DOCQA_PG_HOST", "127.0.0.1"),
		PGPort:        envInt("DOCQA_PG_PORT", 5432),
		PGUser:        envString("DOCQA_PG_USER", "postgres"),
		PGPassword:    os.Getenv("DOCQA_PG_PASSWORD"),
		PGDatabase:    envString("DOCQA_PG_DATABASE", "docqa"),
		PGSSLMode:     envString("DOCQA_PG_SSLMODE", "disable"),
		PGDimension:   envInt("DOCQA_PG_DIMENSION", 1536),

		SessionBackend: envString("DOCQA_SESSION_BACKEND", "inmemory"),
		RedisAddr:      envString("DOCQA_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  os.Getenv("DOCQA_REDIS_PASSWORD"),
		RedisDB:        envInt("DOCQA_REDIS_DB", 0),

		MongoURI:        os.Getenv("DOCQA_MONGO_URI"),
		MongoDatabase:   envString("DOCQA_MONGO_DATABASE", "docqa"),
		MongoCollection: envString("DOCQA_MONGO_COLLECTION", "runs"),

		Engine: Engine{
			RetrievalTopK:        envInt("DOCQA_RETRIEVAL_TOP_K", 5),
			RerankTopN:           envInt("DOCQA_RERANK_TOP_N", 3),
			ConfidenceThreshold:  envFloat("DOCQA_CONFIDENCE_THRESHOLD", 0.9),
			MaxRewriteIterations: envInt("DOCQA_MAX_REWRITE_ITERATIONS", 3),
			NodeTimeout:          envDuration("DOCQA_NODE_TIMEOUT", 60*time.Second),
			WebSearchResults:     envInt("DOCQA_WEB_SEARCH_RESULTS", 3),
		},
	}
}

func envString(key, fallback string) string {
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
