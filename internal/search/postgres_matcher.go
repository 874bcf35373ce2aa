package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clauseguard/reconcile/internal/model"
)

// PostgresMatcher implements Matcher directly against the library_clauses
// table's pgvector column, using the `<=>` cosine-distance operator. Serves
// as the fallback when no Qdrant endpoint is configured, and as the
// reference implementation Qdrant results are expected to agree with.
type PostgresMatcher struct {
	pool *pgxpool.Pool
}

// NewPostgresMatcher constructs a matcher against an existing pool. The pool
// is owned by the caller (storage.DB); this matcher only reads from it.
func NewPostgresMatcher(pool *pgxpool.Pool) *PostgresMatcher {
	return &PostgresMatcher{pool: pool}
}

// TopN queries active library clauses ordered by cosine distance, applying
// the clause_type/risk_level tie-break in Go after fetching a slightly
// larger candidate set (spec §4.3). The Legal Clause Library is shared
// across tenants (spec §3 lists no tenant_id on LibraryClause), so
// tenantID is accepted for Matcher interface parity but not filtered on.
func (m *PostgresMatcher) TopN(ctx context.Context, tenantID uuid.UUID, embedding pgvector.Vector, clauseType string, n int) ([]Candidate, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT id, clause_id, clause_type, standard_text, risk_level,
		       1 - (embedding <=> $1) AS similarity
		FROM library_clauses
		WHERE active AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		embedding, n*3)
	if err != nil {
		return nil, fmt.Errorf("search: query library clauses: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var riskLevel string
		if err := rows.Scan(&c.LibraryClauseID, &c.ClauseID, &c.ClauseType, &c.StandardText, &riskLevel, &c.Similarity); err != nil {
			return nil, fmt.Errorf("search: scan library clause: %w", err)
		}
		c.RiskLevel = model.RiskLevel(riskLevel)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: iterate library clauses: %w", err)
	}

	sortCandidates(candidates, clauseType)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// UpsertEmbedding writes a library clause's embedding and model_version,
// used by the background re-embedding worker (SPEC_FULL.md §12).
func (m *PostgresMatcher) UpsertEmbedding(ctx context.Context, libraryClauseID uuid.UUID, embedding pgvector.Vector, modelVersion string) error {
	_, err := m.pool.Exec(ctx, `
		UPDATE library_clauses SET embedding = $1, model_version = $2 WHERE id = $3`,
		embedding, modelVersion, libraryClauseID)
	if err != nil {
		return fmt.Errorf("search: upsert embedding: %w", err)
	}
	return nil
}

// NeedsEmbedding returns active library clauses whose embedding is missing
// or stale relative to currentModelVersion.
func (m *PostgresMatcher) NeedsEmbedding(ctx context.Context, currentModelVersion string) ([]model.LibraryClause, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT id, clause_id, clause_type, standard_text, category, risk_level, tags, model_version, active
		FROM library_clauses
		WHERE active AND (embedding IS NULL OR model_version <> $1)`, currentModelVersion)
	if err != nil {
		return nil, fmt.Errorf("search: query stale embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.LibraryClause
	for rows.Next() {
		var lc model.LibraryClause
		var riskLevel, category string
		if err := rows.Scan(&lc.ID, &lc.ClauseID, &lc.ClauseType, &lc.StandardText, &category, &riskLevel,
			&lc.Tags, &lc.ModelVersion, &lc.Active); err != nil {
			return nil, fmt.Errorf("search: scan stale library clause: %w", err)
		}
		lc.Category = model.Category(category)
		lc.RiskLevel = model.RiskLevel(riskLevel)
		out = append(out, lc)
	}
	return out, rows.Err()
}
