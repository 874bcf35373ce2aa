package reconcile

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	databaseURL      string
	qdrantURL        string
	logger           *slog.Logger
	version          string
	embeddingAdapter EmbeddingAdapter
	llmAdapter       LLMAdapter
	matcher          Matcher
	extraMigrations  []fs.FS
}

// WithDatabaseURL overrides the database connection string from config
// (RECONCILE_DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithQdrantURL overrides the Qdrant endpoint from config (QDRANT_URL env
// var). With no Qdrant URL from either source, or with RECONCILE_USE_QDRANT
// false, the pgvector fallback matcher is used.
func WithQdrantURL(url string) Option {
	return func(o *resolvedOptions) { o.qdrantURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEmbeddingProvider replaces the auto-detected embedding provider
// (OpenAI/noop). The provided implementation must satisfy the
// EmbeddingAdapter interface.
func WithEmbeddingProvider(p EmbeddingAdapter) Option {
	return func(o *resolvedOptions) { o.embeddingAdapter = p }
}

// WithLLMAdapter replaces the auto-detected LLM adapter (OpenAI/
// Anthropic/noop) used by the batch comparator (C6) and direction
// validator (C7).
func WithLLMAdapter(a LLMAdapter) Option {
	return func(o *resolvedOptions) { o.llmAdapter = a }
}

// WithMatcher replaces the auto-detected library matcher (Qdrant/pgvector
// fallback) used by C3.
func WithMatcher(m Matcher) Option {
	return func(o *resolvedOptions) { o.matcher = m }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the embedded migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
