package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"

	"github.com/clauseguard/reconcile/internal/config"
	"github.com/clauseguard/reconcile/internal/embedding"
	"github.com/clauseguard/reconcile/internal/llm"
	"github.com/clauseguard/reconcile/internal/model"
	core "github.com/clauseguard/reconcile/internal/reconcile"
	"github.com/clauseguard/reconcile/internal/search"
	"github.com/clauseguard/reconcile/internal/storage"
	"github.com/clauseguard/reconcile/internal/telemetry"
	"github.com/clauseguard/reconcile/migrations"
)

// App wires storage, the embedding provider, the library matcher, and the
// LLM adapter into a ready-to-use reconciliation engine.
type App struct {
	cfg          config.Config
	db           *storage.DB
	orchestrator *core.Orchestrator
	reembed      *search.ReembedWorker // nil when RECONCILE_REEMBED_ENABLED=false
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initializes the reconciliation engine. It connects to the database,
// runs migrations, wires every adapter, and returns a ready-to-use App.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.qdrantURL != "" {
		cfg.QdrantURL = o.qdrantURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("reconcile starting", "version", version)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for _, extra := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extra); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations: %w", err)
		}
	}

	// Embedding provider (C2) — external override takes priority over auto-detect.
	var embedder embedding.Provider
	if o.embeddingAdapter != nil {
		embedder = &embeddingAdapterWrapper{a: o.embeddingAdapter}
	} else {
		embedder = newEmbeddingProvider(cfg, logger)
	}

	// Library matcher (C3) — external override, then Qdrant if configured,
	// else the pgvector fallback against Postgres. pgMatcher/qdrantMatcher
	// stay populated even under an external override so the re-embedding
	// worker below always has a Postgres source of truth to poll.
	pgMatcher := search.NewPostgresMatcher(db.Pool())
	var qdrantMatcher *search.QdrantMatcher
	var matcher search.Matcher
	switch {
	case o.matcher != nil:
		matcher = &matcherWrapper{m: o.matcher}
	case cfg.UseQdrant && cfg.QdrantURL != "":
		qm, err := search.NewQdrantMatcher(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
		}, logger)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		if err := qm.EnsureCollection(context.Background()); err != nil {
			_ = qm.Close()
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant ensure collection: %w", err)
		}
		logger.Info("library matcher: qdrant", "collection", cfg.QdrantCollection)
		qdrantMatcher = qm
		matcher = qm
	default:
		logger.Info("library matcher: postgres (pgvector fallback)")
		matcher = pgMatcher
	}

	// LLM adapter (C6/C7) — external override takes priority over auto-detect.
	var llmAdapter llm.Adapter
	if o.llmAdapter != nil {
		llmAdapter = &llmAdapterWrapper{a: o.llmAdapter}
	} else {
		llmAdapter = newLLMAdapter(cfg, logger)
	}

	orchestrator := core.NewOrchestrator(db, embedder, matcher, llmAdapter, cfg, logger)

	var reembed *search.ReembedWorker
	if cfg.ReembedEnabled {
		reembed = search.NewReembedWorker(pgMatcher, qdrantMatcher, embedder, logger, cfg.ReembedPollInterval, cfg.ReembedBatchSize)
		reembed.Start(context.Background())
		logger.Info("reembed worker: started", "poll_interval", cfg.ReembedPollInterval, "batch_size", cfg.ReembedBatchSize)
	}

	return &App{
		cfg:          cfg,
		db:           db,
		orchestrator: orchestrator,
		reembed:      reembed,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Reconcile runs a single reconcile_document pass (C10, spec §4.10) over one
// document: clause/PAT pairing, identity resolution, batch comparison,
// direction validation, RAG composition, and the missing-mandatory report,
// persisting every clause result under CAS version control.
func (a *App) Reconcile(ctx context.Context, documentID, tenantID, dealID, updatedBy uuid.UUID) (ReconciliationReport, error) {
	report, err := a.orchestrator.Reconcile(ctx, documentID, tenantID, dealID, updatedBy)
	if err != nil {
		return ReconciliationReport{}, err
	}
	return toPublicReport(report), nil
}

// GetClauseResult returns the current reconciliation verdict for one clause
// boundary, or nil if it has never been reconciled.
func (a *App) GetClauseResult(ctx context.Context, clauseBoundaryID uuid.UUID) (*ClauseResult, error) {
	result, err := a.db.GetClauseResult(ctx, clauseBoundaryID)
	if err != nil {
		return nil, fmt.Errorf("get clause result: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	cr := toPublicClauseResult(*result)
	return &cr, nil
}

// ListDiscrepancies returns every discrepancy (per-clause and
// document-level missing-mandatory) recorded for a document.
func (a *App) ListDiscrepancies(ctx context.Context, documentID uuid.UUID) ([]Discrepancy, error) {
	discs, err := a.db.ListDiscrepancies(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	out := make([]Discrepancy, len(discs))
	for i, d := range discs {
		out[i] = toPublicDiscrepancy(d)
	}
	return out, nil
}

// Close drains the re-embedding worker, releases the database pool, and
// flushes the OpenTelemetry exporters.
func (a *App) Close() error {
	a.logger.Info("reconcile shutting down")
	if a.reembed != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.reembed.Drain(drainCtx)
		cancel()
	}
	a.db.Close()
	return a.otelShutdown(context.Background())
}

func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	switch cfg.EmbeddingProvider {
	case "noop":
		logger.Info("embedding provider: noop (semantic matching disabled)")
		return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
	case "openai":
		fallthrough
	default:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("no OPENAI_API_KEY configured, using noop embedding provider (semantic matching disabled)")
			return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
		}
		logger.Info("embedding provider: openai", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
		p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.EmbedBatchMax)
		if err != nil {
			logger.Error("openai embedding provider init failed, falling back to noop", "error", err)
			return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
		}
		return p
	}
}

func newLLMAdapter(cfg config.Config, logger *slog.Logger) llm.Adapter {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("RECONCILE_LLM_PROVIDER=anthropic but ANTHROPIC_API_KEY is unset, using noop adapter")
			return llm.NoopAdapter{}
		}
		logger.Info("llm adapter: anthropic", "model", cfg.LLMModel)
		return llm.NewAnthropicAdapter(cfg.AnthropicAPIKey, cfg.LLMModel)
	case "noop":
		logger.Info("llm adapter: noop (comparison and direction validation disabled)")
		return llm.NoopAdapter{}
	case "openai":
		fallthrough
	default:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("no OPENAI_API_KEY configured, using noop llm adapter")
			return llm.NoopAdapter{}
		}
		logger.Info("llm adapter: openai", "model", cfg.LLMModel)
		return llm.NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.LLMModel)
	}
}

// ── Public ⇄ internal conversion helpers ───────────────────────────────────
// This file is the only one that sees both sides of the reconcile/internal
// boundary; every other root file stays self-contained.

func toPublicReport(r core.Report) ReconciliationReport {
	missing := make([]MissingMandatory, len(r.MissingMandatory))
	for i, m := range r.MissingMandatory {
		missing[i] = MissingMandatory{TermCategory: m.TermCategory, Reason: m.Reason}
	}
	return ReconciliationReport{
		DocumentID:       r.DocumentID,
		Status:           RunStatus(r.Status),
		GreenCount:       r.GreenCount,
		AmberCount:       r.AmberCount,
		RedCount:         r.RedCount,
		MissingMandatory: missing,
		Warnings:         r.Warnings,
		Duration:         r.Duration,
		VersionSnapshot:  r.VersionSnapshot,
	}
}

func toPublicClauseResult(r model.ClauseMatchResult) ClauseResult {
	cr := ClauseResult{
		ClauseBoundaryID:  r.ClauseBoundaryID,
		MatchedTemplateID: r.MatchedTemplateID,
		SimilarityScore:   r.SimilarityScore,
		RAGParsing:        RAGStatus(r.RAGParsing),
		RAGRisk:           RAGStatus(r.RAGRisk),
		RAGStatus:         RAGStatus(r.RAGStatus),
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.GPTAnalysis.TopMatch != nil {
		tm := r.GPTAnalysis.TopMatch
		cr.TopMatch = &TopMatch{
			LibraryClauseID: tm.LibraryClauseID,
			ClauseID:        tm.ClauseID,
			ClauseType:      tm.ClauseType,
			SimilarityScore: tm.SimilarityScore,
		}
	}
	for _, c := range r.GPTAnalysis.PreAgreedComparisons {
		cr.PreAgreedComparisons = append(cr.PreAgreedComparisons, PreAgreedComparison{
			PATID:        c.PATID,
			TermCategory: c.TermCategory,
			Matches:      c.Matches,
			Severity:     Severity(c.Severity),
			RiskSummary:  c.RiskSummary,
			Differences:  c.Differences,
			Confidence:   c.Confidence,
			ReasonCode:   c.ReasonCode,
		})
	}
	if dv := r.GPTAnalysis.DirectionValidation; dv != nil {
		cr.DirectionValidation = &DirectionValidation{
			DirectionMatch:    dv.DirectionMatch,
			ContractDirection: string(dv.ContractDirection),
			LibraryDirection:  string(dv.LibraryDirection),
			Confidence:        dv.Confidence,
			Reasoning:         dv.Reasoning,
		}
	}
	return cr
}

func toPublicDiscrepancy(d model.Discrepancy) Discrepancy {
	return Discrepancy{
		ID:               d.ID,
		DocumentID:       d.DocumentID,
		ClauseBoundaryID: d.ClauseBoundaryID,
		PATID:            d.PATID,
		Type:             DiscrepancyType(d.Type),
		Severity:         Severity(d.Severity),
		TermCategory:     d.TermCategory,
		Reason:           d.Reason,
	}
}

// ── Public-interface ⇄ internal-interface adapters ─────────────────────────

type embeddingAdapterWrapper struct{ a EmbeddingAdapter }

func (w *embeddingAdapterWrapper) Dimensions() int      { return w.a.Dimensions() }
func (w *embeddingAdapterWrapper) ModelVersion() string { return "external" }

func (w *embeddingAdapterWrapper) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := w.a.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(v), nil
}

func (w *embeddingAdapterWrapper) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vs, err := w.a.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]pgvector.Vector, len(vs))
	for i, v := range vs {
		out[i] = pgvector.NewVector(v)
	}
	return out, nil
}

type llmAdapterWrapper struct{ a LLMAdapter }

func (w *llmAdapterWrapper) CompleteStructured(ctx context.Context, prompt string, schema json.RawMessage, opts llm.CompletionOptions) (json.RawMessage, error) {
	return w.a.CompleteStructured(ctx, prompt, schema, opts.Deadline, opts.MaxTokens)
}

type matcherWrapper struct{ m Matcher }

func (w *matcherWrapper) TopN(ctx context.Context, tenantID uuid.UUID, embedding pgvector.Vector, clauseType string, n int) ([]search.Candidate, error) {
	candidates, err := w.m.TopN(ctx, tenantID.String(), embedding.Slice(), clauseType, n)
	if err != nil {
		return nil, err
	}
	out := make([]search.Candidate, len(candidates))
	for i, c := range candidates {
		libID, err := uuid.Parse(c.LibraryClauseID)
		if err != nil {
			return nil, fmt.Errorf("matcher: invalid library_clause_id %q: %w", c.LibraryClauseID, err)
		}
		out[i] = search.Candidate{
			LibraryClauseID: libID,
			ClauseID:        c.ClauseID,
			ClauseType:      c.ClauseType,
			StandardText:    c.StandardText,
			RiskLevel:       model.RiskLevel(c.RiskLevel),
			Similarity:      c.Similarity,
		}
	}
	return out, nil
}
