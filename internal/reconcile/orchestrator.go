// Package reconcile implements the reconciliation engine's core: clause/PAT
// pairing (C4), identity resolution (C5), LLM batch comparison (C6),
// direction validation (C7), RAG composition (C8), missing-mandatory
// reporting (C9), and the orchestrator that wires all of them into a single
// reconcile_document run (C10, spec §4.10).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/clauseguard/reconcile/internal/config"
	"github.com/clauseguard/reconcile/internal/embedding"
	"github.com/clauseguard/reconcile/internal/llm"
	"github.com/clauseguard/reconcile/internal/model"
	"github.com/clauseguard/reconcile/internal/search"
	"github.com/clauseguard/reconcile/internal/storage"
)

// topCandidateN is how many library candidates C3 fetches per clause before
// the orchestrator keeps only the top-ranked one (spec §4.3).
const topCandidateN = 5

// RunStatus summarizes how a reconciliation run concluded.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // one or more clauses degraded or were skipped
	RunCancelled RunStatus = "cancelled"
)

// Report is the public reconcile_document result (spec §6's
// ReconciliationReport).
type Report struct {
	DocumentID       uuid.UUID
	Status           RunStatus
	GreenCount       int
	AmberCount       int
	RedCount         int
	MissingMandatory []MissingMandatory
	Warnings         []string
	Duration         time.Duration
	// VersionSnapshot maps clause_boundary_id to the version accepted (or
	// already current) for that clause at the end of this run.
	VersionSnapshot map[uuid.UUID]int
}

// Orchestrator wires storage, the embedding provider, the library matcher,
// and the LLM adapter into the full C1-C9 pipeline. One Orchestrator can
// serve many concurrent Reconcile calls — apart from adapterSem, which all
// calls share, mutable state lives on the stack of each call.
type Orchestrator struct {
	db         *storage.DB
	embedder   embedding.Provider
	matcher    search.Matcher
	llmAdapter llm.Adapter
	cfg        config.Config
	logger     *slog.Logger

	// adapterSem is the global ceiling across every outbound adapter call
	// (embeddings, library search, LLM) made through this Orchestrator,
	// shared by all concurrent runs, on top of the per-stage E/B limits
	// (spec §5).
	adapterSem *semaphore.Weighted
}

// NewOrchestrator constructs an Orchestrator. logger defaults to
// slog.Default() when nil.
func NewOrchestrator(db *storage.DB, embedder embedding.Provider, matcher search.Matcher, llmAdapter llm.Adapter, cfg config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		db:         db,
		embedder:   embedder,
		matcher:    matcher,
		llmAdapter: llmAdapter,
		cfg:        cfg,
		logger:     logger,
		adapterSem: semaphore.NewWeighted(int64(cfg.GlobalAdapterLimit)),
	}
}

// clauseState carries one clause's derived pipeline state across stages.
// Fields are written only by the goroutine that owns the clause within a
// given stage, so no locking is needed around the struct itself — only
// around the shared accumulators (allPairs, matchedCategories)
// that multiple clauses feed into.
type clauseState struct {
	boundary            model.ClauseBoundary
	topMatch            *search.Candidate
	similarityScore     float64
	identityResults     []IdentityResult
	comparisons         []model.PreAgreedComparison
	directionValidation *model.DirectionValidation
	degraded            bool
}

// Reconcile runs the full pipeline for one document: load inputs (C1),
// embed + library-match every clause (C2/C3), pair clauses to PATs (C4),
// resolve identity PATs (C5), batch-compare the rest via the LLM (C6),
// validate rights-transfer direction where applicable (C7), compose a final
// rag_status per clause (C8), persist each result under CAS (C1), and
// report missing mandatory categories (C9).
func (o *Orchestrator) Reconcile(ctx context.Context, documentID, tenantID, dealID, updatedBy uuid.UUID) (Report, error) {
	started := time.Now()
	report := Report{DocumentID: documentID, VersionSnapshot: make(map[uuid.UUID]int)}

	inputs, err := o.db.LoadReconciliationInputs(ctx, documentID, tenantID, dealID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: load inputs: %w", err)
	}

	patByID := make(map[uuid.UUID]model.PreAgreedTerm, len(inputs.PATs))
	for _, pat := range inputs.PATs {
		patByID[pat.ID] = pat
	}

	states := make([]*clauseState, 0, len(inputs.Clauses))
	for _, b := range inputs.Clauses {
		if !b.Valid() || b.Confidence < model.MinBoundaryConfidence {
			report.Warnings = append(report.Warnings, fmt.Sprintf("clause %s skipped: invalid or low-confidence boundary", b.ID))
			continue
		}
		states = append(states, &clauseState{boundary: b})
	}

	var mu sync.Mutex
	var allPairs []ComparisonPair
	matchedCategories := NewMatchedCategorySet()

	// Stage 1 (C2/C3/C4/C5): bounded by EmbedConcurrency (E). Every clause
	// is embedded, library-matched, paired against every PAT, and its
	// identity-category pairings resolved immediately; commercial pairings
	// are collected for the document-wide batch stage that follows.
	stage1, stage1Ctx := errgroup.WithContext(ctx)
	stage1.SetLimit(o.cfg.EmbedConcurrency)
	for _, st := range states {
		stage1.Go(func() error {
			return o.runStageOne(stage1Ctx, st, tenantID, inputs.PATs, patByID, inputs.FullContractText, &mu, &allPairs, matchedCategories, &report)
		})
	}
	if err := stage1.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Status = RunCancelled
			report.Duration = time.Since(started)
			return report, nil
		}
		return Report{}, fmt.Errorf("reconcile: stage 1 (embed/match/pair): %w", err)
	}

	// Stage 2 (C6): batches are built across the WHOLE document so small
	// clauses share a batch, bounded by LLMBatchConcurrency (B).
	batches := BuildBatches(allPairs, o.cfg)
	batchResults := make([][]model.PreAgreedComparison, len(batches))
	stage2, stage2Ctx := errgroup.WithContext(ctx)
	stage2.SetLimit(o.cfg.LLMBatchConcurrency)
	for i, b := range batches {
		stage2.Go(func() error {
			if err := stage2Ctx.Err(); err != nil {
				return err
			}
			if err := o.adapterSem.Acquire(stage2Ctx, 1); err != nil {
				return err
			}
			defer o.adapterSem.Release(1)
			res, err := CompareBatch(stage2Ctx, o.llmAdapter, b, o.cfg)
			if err != nil {
				return err
			}
			batchResults[i] = res
			return nil
		})
	}
	if err := stage2.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Status = RunCancelled
			report.Duration = time.Since(started)
			return report, nil
		}
		return Report{}, fmt.Errorf("reconcile: stage 2 (batch comparator): %w", err)
	}

	byClause := make(map[uuid.UUID][]model.PreAgreedComparison)
	for i, b := range batches {
		for j, pair := range b.Pairs {
			byClause[pair.ClauseBoundaryID] = append(byClause[pair.ClauseBoundaryID], batchResults[i][j])
		}
	}
	for _, st := range states {
		st.comparisons = byClause[st.boundary.ID]
		matchedCategories.AddBatchResults(st.comparisons)
		for _, c := range st.comparisons {
			if c.ReasonCode != "" {
				st.degraded = true
			}
		}
	}

	// Stage 3 (C7): direction validation for clauses that qualify, bounded
	// by LLMBatchConcurrency — it shares the LLM adapter's concurrency
	// budget with C6 rather than a dedicated knob, since both compete for
	// the same rate limit.
	var candidates []*clauseState
	for _, st := range states {
		if st.topMatch == nil {
			continue
		}
		if IsDirectionCandidate(st.boundary.ClauseType, st.similarityScore, true, o.cfg) {
			candidates = append(candidates, st)
		}
	}
	stage3, stage3Ctx := errgroup.WithContext(ctx)
	stage3.SetLimit(o.cfg.LLMBatchConcurrency)
	for _, st := range candidates {
		stage3.Go(func() error {
			if err := stage3Ctx.Err(); err != nil {
				return err
			}
			if err := o.adapterSem.Acquire(stage3Ctx, 1); err != nil {
				return err
			}
			defer o.adapterSem.Release(1)
			dv, err := ValidateDirection(stage3Ctx, o.llmAdapter, st.boundary.Content, st.topMatch.StandardText, o.cfg)
			if err != nil {
				return err
			}
			st.directionValidation = &dv
			return nil
		})
	}
	if err := stage3.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Status = RunCancelled
			report.Duration = time.Since(started)
			return report, nil
		}
		return Report{}, fmt.Errorf("reconcile: stage 3 (direction validator): %w", err)
	}

	// Stage 4 (C8 + C1): compose each clause's final rag_status and persist
	// under CAS, bounded by EmbedConcurrency again — DB writes are cheap
	// enough to share that limit rather than need a dedicated one.
	var discrepancies []model.Discrepancy
	stage4, stage4Ctx := errgroup.WithContext(ctx)
	stage4.SetLimit(o.cfg.EmbedConcurrency)
	for _, st := range states {
		stage4.Go(func() error {
			if err := stage4Ctx.Err(); err != nil {
				return err
			}
			candidate := o.buildResult(documentID, st, updatedBy)
			result, err := o.persistClause(stage4Ctx, candidate)
			if err != nil {
				return fmt.Errorf("clause %s: %w", st.boundary.ID, err)
			}

			mu.Lock()
			report.VersionSnapshot[st.boundary.ID] = result.CurrentVersion
			switch candidate.RAGStatus {
			case model.RAGGreen:
				report.GreenCount++
			case model.RAGAmber:
				report.AmberCount++
			case model.RAGRed:
				report.RedCount++
			}
			discrepancies = append(discrepancies, clauseDiscrepancies(documentID, st)...)
			mu.Unlock()
			return nil
		})
	}
	if err := stage4.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Status = RunCancelled
			report.Duration = time.Since(started)
			return report, nil
		}
		return Report{}, fmt.Errorf("reconcile: stage 4 (compose/persist): %w", err)
	}

	// C9: missing-mandatory reporting runs once across the whole document,
	// after every clause has folded its evidence into matchedCategories.
	missing, mandatoryDiscrepancies := o.buildMandatoryReport(inputs.PATs, matchedCategories, documentID)
	report.MissingMandatory = missing
	discrepancies = append(discrepancies, mandatoryDiscrepancies...)

	if err := o.db.WriteDiscrepancies(ctx, discrepancies); err != nil {
		return Report{}, fmt.Errorf("reconcile: write discrepancies: %w", err)
	}

	report.Duration = time.Since(started)
	report.Status = RunCompleted
	for _, st := range states {
		if st.degraded {
			report.Status = RunPartial
			break
		}
	}
	if len(report.Warnings) > 0 && report.Status == RunCompleted {
		report.Status = RunPartial
	}
	return report, nil
}

// runStageOne performs C2 (embed), C3 (library match), C4 (pairing), and C5
// (identity resolution) for a single clause. Embedding or matching failures
// degrade the clause (no template match, red rag_parsing) rather than
// aborting the run — spec §7's adapter failure policy.
func (o *Orchestrator) runStageOne(
	ctx context.Context,
	st *clauseState,
	tenantID uuid.UUID,
	allPATs []model.PreAgreedTerm,
	patByID map[uuid.UUID]model.PreAgreedTerm,
	fullContractText string,
	mu *sync.Mutex,
	allPairs *[]ComparisonPair,
	matchedCategories *MatchedCategorySet,
	report *Report,
) error {
	vec, err := o.embedWithRetry(ctx, st.boundary.Content)
	if err != nil {
		st.degraded = true
		mu.Lock()
		report.Warnings = append(report.Warnings, fmt.Sprintf("clause %s: embedding unavailable: %v", st.boundary.ID, err))
		mu.Unlock()
	} else {
		if err := o.adapterSem.Acquire(ctx, 1); err != nil {
			return err
		}
		candidates, matchErr := o.matcher.TopN(ctx, tenantID, vec, st.boundary.ClauseType, topCandidateN)
		o.adapterSem.Release(1)
		if matchErr != nil {
			st.degraded = true
			mu.Lock()
			report.Warnings = append(report.Warnings, fmt.Sprintf("clause %s: library match unavailable: %v", st.boundary.ID, matchErr))
			mu.Unlock()
		} else if len(candidates) > 0 {
			c := candidates[0]
			st.topMatch = &c
			st.similarityScore = float64(c.Similarity)
		}
	}

	// Pair may call the embedding provider (semantic fallback), so it runs
	// under the global adapter semaphore like every other adapter call.
	if err := o.adapterSem.Acquire(ctx, 1); err != nil {
		return err
	}
	pairing, err := Pair(ctx, st.boundary.ClauseType, vec, allPATs, o.embedder, o.cfg.SemanticPairingThreshold)
	o.adapterSem.Release(1)
	if err != nil {
		st.degraded = true
		mu.Lock()
		report.Warnings = append(report.Warnings, fmt.Sprintf("clause %s: semantic pairing unavailable: %v", st.boundary.ID, err))
		mu.Unlock()
	}

	var clausePairs []ComparisonPair
	for _, m := range pairing.Matched {
		pat, ok := patByID[m.PATID]
		if !ok {
			continue
		}
		if pat.IsIdentity() {
			res := ResolveIdentity(pat, st.boundary.Content, fullContractText)
			st.identityResults = append(st.identityResults, res)
			continue
		}
		clausePairs = append(clausePairs, ComparisonPair{
			ClauseBoundaryID: st.boundary.ID,
			PATID:            pat.ID,
			TermCategory:     pat.TermCategory,
			Method:           m.Method,
			ClauseContent:    st.boundary.Content,
			PATValue:         patCompareValue(pat),
		})
	}

	mu.Lock()
	*allPairs = append(*allPairs, clausePairs...)
	for _, res := range st.identityResults {
		matchedCategories.AddIdentityResult(res)
	}
	mu.Unlock()
	return nil
}

// patCompareValue is the text C6 compares clause content against: the
// expected value when the deal pinned one, else the free-text description.
func patCompareValue(pat model.PreAgreedTerm) string {
	if pat.HasExpectedValue() {
		return *pat.ExpectedValue
	}
	return pat.TermDescription
}

// embedWithRetry wraps a single Embed call with the configured retry ladder
// (spec §4.10: 3 attempts, base 500ms, jitter) before treating it as a
// clause-level degradation. The semaphore is held for the duration of each
// attempt, not across the whole retry loop, so other clauses aren't starved
// while this one backs off.
func (o *Orchestrator) embedWithRetry(ctx context.Context, text string) (pgvector.Vector, error) {
	var lastErr error
	delay := o.cfg.AdapterRetryBaseDelay
	attempts := o.cfg.AdapterRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := o.adapterSem.Acquire(ctx, 1); err != nil {
			return pgvector.Vector{}, err
		}
		vec, err := o.embedder.Embed(ctx, text)
		o.adapterSem.Release(1)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(delay) + 1)) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return pgvector.Vector{}, ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return pgvector.Vector{}, fmt.Errorf("reconcile: embed after %d attempts: %w", attempts, lastErr)
}

// ragSeverityRank orders RAGStatus from least to most severe, used to fold
// multiple per-clause signals (similarity-derived parsing, identity
// resolutions) into a single worst-wins rag_parsing.
var ragSeverityRank = map[model.RAGStatus]int{
	model.RAGGreen: 0,
	model.RAGAmber: 1,
	model.RAGRed:   2,
	model.RAGBlue:  3,
}

func moreSevereRAG(a, b model.RAGStatus) bool {
	return ragSeverityRank[a] > ragSeverityRank[b]
}

// similarityRAGParsing derives the baseline rag_parsing from C3's
// similarity score (spec §4.3/§4.8): no template match is red, at or above
// the green floor is green, down to the amber floor is amber, below it red.
func similarityRAGParsing(similarity float64, hasMatch bool, cfg config.Config) model.RAGStatus {
	if !hasMatch {
		return model.RAGRed
	}
	switch {
	case similarity >= cfg.GreenSimilarityThreshold:
		return model.RAGGreen
	case similarity >= cfg.AmberSimilarityFloor:
		return model.RAGAmber
	default:
		return model.RAGRed
	}
}

// buildResult composes a clause's final ClauseMatchResult (C8), folding the
// similarity-derived parsing signal with every identity resolution paired to
// this clause (worst wins), the aggregated comparison risk (C6), and any
// direction mismatch (C7). Version and PreviousRAGStatus are filled in by
// persistClause, which has visibility into the currently stored row.
func (o *Orchestrator) buildResult(documentID uuid.UUID, st *clauseState, updatedBy uuid.UUID) model.ClauseMatchResult {
	ragParsing := similarityRAGParsing(st.similarityScore, st.topMatch != nil, o.cfg)
	for _, idr := range st.identityResults {
		if moreSevereRAG(idr.RAGParsing, ragParsing) {
			ragParsing = idr.RAGParsing
		}
	}
	ragRisk := DeriveRAGRisk(st.comparisons)
	directionMismatch := st.directionValidation != nil && !st.directionValidation.DirectionMatch
	ragStatus := ComposeRAGStatus(ragParsing, ragRisk, directionMismatch)

	var matchedTemplateID *uuid.UUID
	var topMatch *model.TopMatch
	if st.topMatch != nil {
		id := st.topMatch.LibraryClauseID
		matchedTemplateID = &id
		topMatch = &model.TopMatch{
			LibraryClauseID: st.topMatch.LibraryClauseID,
			ClauseID:        st.topMatch.ClauseID,
			ClauseType:      st.topMatch.ClauseType,
			SimilarityScore: st.similarityScore,
		}
	}

	reason := "reconciled"
	if st.degraded {
		reason = "reconciled with degraded adapter coverage"
	}

	return model.ClauseMatchResult{
		ID:                uuid.New(),
		DocumentID:        documentID,
		ClauseBoundaryID:  st.boundary.ID,
		MatchedTemplateID: matchedTemplateID,
		SimilarityScore:   st.similarityScore,
		RAGParsing:        ragParsing,
		RAGRisk:           ragRisk,
		RAGStatus:         ragStatus,
		GPTAnalysis: model.GPTAnalysis{
			TopMatch:             topMatch,
			PreAgreedComparisons: st.comparisons,
			DirectionValidation:  st.directionValidation,
			Reason:               reason,
		},
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
}

// persistClause implements the CAS-retry loop around C1's UpsertMatchResult:
// read the currently stored row (if any) to derive the next version,
// attempt the upsert, and — if a concurrent writer won the race — re-derive
// against the new current version and retry, up to persistRetryLimit times.
// A candidate structurally equal to the stored row is never written at all
// (spec §9's no-bump-on-unchanged-outcome resolution).
const persistRetryLimit = 3

func (o *Orchestrator) persistClause(ctx context.Context, candidate model.ClauseMatchResult) (storage.UpsertResult, error) {
	var result storage.UpsertResult
	for attempt := 0; attempt < persistRetryLimit; attempt++ {
		prev, err := o.db.GetClauseResult(ctx, candidate.ClauseBoundaryID)
		if err != nil {
			return storage.UpsertResult{}, fmt.Errorf("read current result: %w", err)
		}

		reasonCode := "reconciled"
		if prev != nil {
			if prev.StructurallyEqual(candidate) {
				return storage.UpsertResult{Accepted: false, CurrentVersion: prev.Version}, nil
			}
			candidate.Version = prev.Version + 1
			prevStatus := prev.RAGStatus
			candidate.PreviousRAGStatus = &prevStatus
			reasonCode = "rag_status_changed"
		} else {
			candidate.Version = 1
		}

		result, err = o.db.UpsertMatchResult(ctx, candidate, reasonCode)
		if err != nil {
			return storage.UpsertResult{}, fmt.Errorf("upsert: %w", err)
		}
		if result.Accepted {
			return result, nil
		}
		// Lost the CAS race to a concurrent writer — loop and re-derive
		// against whatever version is now current.
	}
	return result, nil
}

// clauseDiscrepancies derives per-PAT Discrepancy rows for one clause: every
// comparison that did not match, whether from a genuine LLM verdict or a
// degraded synthesis (spec §4.6/§4.9).
func clauseDiscrepancies(documentID uuid.UUID, st *clauseState) []model.Discrepancy {
	var out []model.Discrepancy
	clauseID := st.boundary.ID
	for _, c := range st.comparisons {
		if c.Matches {
			continue
		}
		patID := c.PATID
		discType := model.DiscrepancyConflicting
		reason := c.RiskSummary
		if c.ReasonCode != "" {
			discType = model.DiscrepancyMissing
			reason = "analysis unavailable: " + c.ReasonCode
		}
		out = append(out, model.Discrepancy{
			ID:               uuid.New(),
			DocumentID:       documentID,
			ClauseBoundaryID: &clauseID,
			PATID:            &patID,
			Type:             discType,
			Severity:         c.Severity,
			TermCategory:     c.TermCategory,
			Reason:           reason,
		})
	}
	for _, idr := range st.identityResults {
		if idr.MatchType != IdentityAbsent {
			continue
		}
		out = append(out, model.Discrepancy{
			ID:               uuid.New(),
			DocumentID:       documentID,
			ClauseBoundaryID: &clauseID,
			Type:             model.DiscrepancyMissing,
			Severity:         model.SeverityMajor,
			TermCategory:     idr.TermCategory,
			Reason:           "identity value not found in clause or contract text",
		})
	}
	return out
}

// buildMandatoryReport implements C9 (spec §4.9) at the document level: PATs
// are grouped by term_category (spec §3 permits repeats within a category),
// and a category is satisfied if ANY clause in the document matched it —
// the regression-prevention property named in spec §8.
func (o *Orchestrator) buildMandatoryReport(pats []model.PreAgreedTerm, matched *MatchedCategorySet, documentID uuid.UUID) ([]MissingMandatory, []model.Discrepancy) {
	var order []string
	seen := make(map[string]bool)
	for _, pat := range pats {
		if !pat.IsMandatory {
			continue
		}
		if !seen[pat.TermCategory] {
			seen[pat.TermCategory] = true
			order = append(order, pat.TermCategory)
		}
	}

	inputs := make([]MandatoryReportInput, 0, len(order))
	for _, cat := range order {
		inputs = append(inputs, MandatoryReportInput{TermCategory: cat, IsMandatory: true, Matched: matched.Matched(cat)})
	}
	missing := BuildMissingMandatoryReport(inputs)

	discrepancies := make([]model.Discrepancy, 0, len(missing))
	for _, m := range missing {
		discrepancies = append(discrepancies, model.Discrepancy{
			ID:           uuid.New(),
			DocumentID:   documentID,
			Type:         model.DiscrepancyMissing,
			Severity:     model.SeverityMajor,
			TermCategory: m.TermCategory,
			Reason:       m.Reason,
		})
	}
	return missing, discrepancies
}
