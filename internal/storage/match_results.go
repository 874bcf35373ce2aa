package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clauseguard/reconcile/internal/model"
)

// UpsertResult is what upsert_match_result (spec §4.1) returns: whether the
// candidate was accepted, and the version now current for the clause.
type UpsertResult struct {
	Accepted       bool
	CurrentVersion int
}

// UpsertMatchResult compares candidate.Version against the currently
// persisted version for candidate.ClauseBoundaryID and accepts the write
// only if candidate.Version is strictly greater. This is the sole
// monotonicity gate (spec §4.1): an older version must never overwrite a
// newer one, and a rejected write leaves the current row untouched.
//
// Acceptance is decided by the UPDATE's RowsAffected count rather than a
// read-then-write round trip, following the teacher's claim-by-write idiom
// (internal/storage/idempotency.go's BeginIdempotency) generalized from
// insert-once semantics to version-gated semantics.
func (db *DB) UpsertMatchResult(ctx context.Context, candidate model.ClauseMatchResult, reasonCode string) (UpsertResult, error) {
	var result UpsertResult

	err := WithRetry(ctx, 3, 100*time.Millisecond, func() error {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin upsert tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		analysisJSON, err := json.Marshal(candidate.GPTAnalysis)
		if err != nil {
			return fmt.Errorf("storage: marshal gpt_analysis: %w", err)
		}

		var previousRAG *model.RAGStatus
		var currentVersion int
		tag, err := tx.Exec(ctx, `
			INSERT INTO clause_match_results (
				id, document_id, clause_boundary_id, matched_template_id,
				similarity_score, rag_parsing, rag_risk, rag_status,
				gpt_analysis, version, previous_rag_status, update_reason,
				updated_by, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (clause_boundary_id) DO UPDATE SET
				matched_template_id = EXCLUDED.matched_template_id,
				similarity_score    = EXCLUDED.similarity_score,
				rag_parsing         = EXCLUDED.rag_parsing,
				rag_risk            = EXCLUDED.rag_risk,
				rag_status          = EXCLUDED.rag_status,
				gpt_analysis        = EXCLUDED.gpt_analysis,
				version             = EXCLUDED.version,
				previous_rag_status = clause_match_results.rag_status,
				update_reason       = EXCLUDED.update_reason,
				updated_by          = EXCLUDED.updated_by,
				updated_at          = EXCLUDED.updated_at
			WHERE clause_match_results.version < EXCLUDED.version`,
			uuid.New(), candidate.DocumentID, candidate.ClauseBoundaryID, candidate.MatchedTemplateID,
			candidate.SimilarityScore, candidate.RAGParsing, candidate.RAGRisk, candidate.RAGStatus,
			analysisJSON, candidate.Version, previousRAG, reasonCode,
			candidate.UpdatedBy, candidate.UpdatedAt)
		if err != nil {
			return fmt.Errorf("storage: upsert match result: %w", err)
		}

		if tag.RowsAffected() == 1 {
			result.Accepted = true
			result.CurrentVersion = candidate.Version

			if err := appendHistory(ctx, tx, candidate, reasonCode); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}

		// Rejected: read back the current version so the caller can decide
		// whether to re-compose and retry.
		err = tx.QueryRow(ctx, `SELECT version FROM clause_match_results WHERE clause_boundary_id = $1`,
			candidate.ClauseBoundaryID).Scan(&currentVersion)
		if errors.Is(err, pgx.ErrNoRows) {
			// Should not happen given the ON CONFLICT path, but guard anyway.
			currentVersion = 0
		} else if err != nil {
			return fmt.Errorf("storage: read current version after reject: %w", err)
		}
		result.Accepted = false
		result.CurrentVersion = currentVersion
		return tx.Commit(ctx)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// appendHistory writes an append-only audit row for an accepted upsert.
// Transaction-coupled with the upsert per spec §4.1.
func appendHistory(ctx context.Context, tx pgx.Tx, candidate model.ClauseMatchResult, reasonCode string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO clause_update_history (
			id, clause_result_id, version, old_rag_status, new_rag_status, reason_code, recorded_at
		) VALUES ($1,
			(SELECT id FROM clause_match_results WHERE clause_boundary_id = $2),
			$3, $4, $5, $6, $7)`,
		uuid.New(), candidate.ClauseBoundaryID, candidate.Version,
		candidate.PreviousRAGStatus, candidate.RAGStatus, reasonCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: append history: %w", err)
	}
	return nil
}

// GetClauseResult implements the public get_clause_result(clause_boundary_id)
// operation (spec §6): returns nil, nil when no result exists yet.
func (db *DB) GetClauseResult(ctx context.Context, clauseBoundaryID uuid.UUID) (*model.ClauseMatchResult, error) {
	var r model.ClauseMatchResult
	var analysisJSON []byte
	err := db.pool.QueryRow(ctx, `
		SELECT id, document_id, clause_boundary_id, matched_template_id, similarity_score,
		       rag_parsing, rag_risk, rag_status, gpt_analysis, version, previous_rag_status,
		       update_reason, updated_by, updated_at
		FROM clause_match_results WHERE clause_boundary_id = $1`, clauseBoundaryID).
		Scan(&r.ID, &r.DocumentID, &r.ClauseBoundaryID, &r.MatchedTemplateID, &r.SimilarityScore,
			&r.RAGParsing, &r.RAGRisk, &r.RAGStatus, &analysisJSON, &r.Version, &r.PreviousRAGStatus,
			&r.UpdateReason, &r.UpdatedBy, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get clause result: %w", err)
	}
	if err := json.Unmarshal(analysisJSON, &r.GPTAnalysis); err != nil {
		return nil, fmt.Errorf("storage: unmarshal gpt_analysis: %w", err)
	}
	return &r, nil
}
