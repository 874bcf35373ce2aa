package search

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/clauseguard/reconcile/internal/embedding"
	"github.com/clauseguard/reconcile/internal/telemetry"
)

// ReembedWorker polls library_clauses for active rows with a missing or
// stale embedding and re-embeds them, keeping the Qdrant index (when
// configured) and the Postgres fallback column in sync. Adapted from the
// teacher's search-outbox poll loop: a ticker-driven processBatch with a
// Start/Drain lifecycle, minus the outbox table — LCL authoring has no
// change stream, so polling NeedsEmbedding directly is sufficient
// (SPEC_FULL.md §12).
type ReembedWorker struct {
	pg       *PostgresMatcher
	qdrant   *QdrantMatcher // nil when no Qdrant endpoint is configured
	provider embedding.Provider
	logger   *slog.Logger

	pollInterval time.Duration
	batchSize    int

	started       atomic.Bool
	lastBatchSize atomic.Int64
	cancelLoop    context.CancelFunc
	done          chan struct{}
	once          sync.Once
	drainOnce     sync.Once
	drainCh       chan context.Context
}

// NewReembedWorker creates a new background re-embedding worker.
func NewReembedWorker(pg *PostgresMatcher, qdrant *QdrantMatcher, provider embedding.Provider, logger *slog.Logger, pollInterval time.Duration, batchSize int) *ReembedWorker {
	return &ReembedWorker{
		pg:           pg,
		qdrant:       qdrant,
		provider:     provider,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		done:         make(chan struct{}),
		drainCh:      make(chan context.Context, 1),
	}
}

// Start begins the background poll loop. Safe to call only once; subsequent
// calls are no-ops and log a warning.
func (w *ReembedWorker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("reembed worker: Start called more than once, ignoring")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancelLoop = cancel
	go w.pollLoop(loopCtx)
}

// Drain signals the poll loop to stop, processes one final batch, and
// blocks until done or ctx expires. Safe to call multiple times.
func (w *ReembedWorker) Drain(ctx context.Context) {
	w.drainOnce.Do(func() {
		sendCtx, sendCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		select {
		case w.drainCh <- ctx:
		case <-sendCtx.Done():
			w.logger.Warn("reembed worker: drain context channel busy, final poll will use fallback timeout")
		}
		sendCancel()
		if w.cancelLoop != nil {
			w.cancelLoop()
		}
	})
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("reembed worker: drain timed out")
	}
}

func (w *ReembedWorker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			var drainCtx context.Context
			select {
			case drainCtx = <-w.drainCh:
			default:
			}
			if drainCtx != nil {
				w.processBatch(drainCtx)
			} else {
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.processBatch(fallbackCtx)
				cancel()
			}
			w.once.Do(func() { close(w.done) })
			return
		case <-ticker.C:
			batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			w.processBatch(batchCtx)
			cancel()
		}
	}
}

func (w *ReembedWorker) processBatch(ctx context.Context) {
	stale, err := w.pg.NeedsEmbedding(ctx, w.provider.ModelVersion())
	if err != nil {
		w.logger.Error("reembed worker: query stale clauses", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	if len(stale) > w.batchSize {
		stale = stale[:w.batchSize]
	}

	texts := make([]string, len(stale))
	for i, lc := range stale {
		texts[i] = lc.StandardText
	}

	vectors, err := w.provider.EmbedBatch(ctx, texts)
	if err != nil {
		w.logger.Error("reembed worker: embed batch", "error", err, "count", len(texts))
		return
	}

	modelVersion := w.provider.ModelVersion()
	var points []LibraryPoint
	for i, lc := range stale {
		if err := w.pg.UpsertEmbedding(ctx, lc.ID, vectors[i], modelVersion); err != nil {
			w.logger.Error("reembed worker: upsert embedding", "error", err, "library_clause_id", lc.ID)
			continue
		}
		points = append(points, LibraryPoint{
			LibraryClauseID: lc.ID,
			ClauseID:        lc.ClauseID,
			ClauseType:      lc.ClauseType,
			StandardText:    lc.StandardText,
			RiskLevel:       lc.RiskLevel,
			ModelVersion:    modelVersion,
			Embedding:       vectors[i].Slice(),
		})
	}

	if w.qdrant != nil && len(points) > 0 {
		if err := w.qdrant.Upsert(ctx, points); err != nil {
			w.logger.Error("reembed worker: qdrant upsert", "error", err, "count", len(points))
			return
		}
	}

	w.lastBatchSize.Store(int64(len(points)))
	w.logger.Info("reembed worker: re-embedded library clauses", "count", len(points))
}

// registerMetrics registers an observable gauge for the count of library
// clauses re-embedded in the most recent poll.
func (w *ReembedWorker) registerMetrics() {
	meter := telemetry.Meter("reconcile/reembed")

	_, _ = meter.Int64ObservableGauge("reconcile.reembed.last_batch_size",
		metric.WithDescription("Number of library clauses re-embedded in the most recent poll"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(w.lastBatchSize.Load())
			return nil
		}),
	)
}
