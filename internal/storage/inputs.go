package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/clauseguard/reconcile/internal/model"
)

// ReconciliationInputs is the bulk-fetch result C1's load_reconciliation_inputs
// returns: every clause boundary, PAT, and active LCL row for a document,
// plus the full contract text C5's identity resolver needs.
type ReconciliationInputs struct {
	Clauses        []model.ClauseBoundary
	PATs           []model.PreAgreedTerm
	ActiveLCL      []model.LibraryClause
	FullContractText string
}

// LoadReconciliationInputs bulk-fetches everything the orchestrator needs for
// one run. It returns PATs even when empty; the orchestrator still runs
// every stage in that case, and C4 simply finds nothing to pair.
func (db *DB) LoadReconciliationInputs(ctx context.Context, documentID, tenantID, dealID uuid.UUID) (ReconciliationInputs, error) {
	var out ReconciliationInputs

	clauseRows, err := db.pool.Query(ctx, `
		SELECT id, document_id, tenant_id, clause_type, content, confidence,
		       start_char, end_char, start_page, end_page
		FROM clause_boundaries
		WHERE document_id = $1
		ORDER BY start_char NULLS LAST, id`, documentID)
	if err != nil {
		return out, fmt.Errorf("storage: load clause boundaries: %w", err)
	}
	for clauseRows.Next() {
		var c model.ClauseBoundary
		if err := clauseRows.Scan(&c.ID, &c.DocumentID, &c.TenantID, &c.ClauseType, &c.Content,
			&c.Confidence, &c.StartChar, &c.EndChar, &c.StartPage, &c.EndPage); err != nil {
			clauseRows.Close()
			return out, fmt.Errorf("storage: scan clause boundary: %w", err)
		}
		out.Clauses = append(out.Clauses, c)
	}
	clauseRows.Close()
	if err := clauseRows.Err(); err != nil {
		return out, fmt.Errorf("storage: iterate clause boundaries: %w", err)
	}

	patRows, err := db.pool.Query(ctx, `
		SELECT id, deal_id, term_category, term_description, expected_value,
		       is_mandatory, related_clause_types
		FROM pre_agreed_terms
		WHERE deal_id = $1
		ORDER BY id`, dealID)
	if err != nil {
		return out, fmt.Errorf("storage: load PATs: %w", err)
	}
	for patRows.Next() {
		var p model.PreAgreedTerm
		if err := patRows.Scan(&p.ID, &p.DealID, &p.TermCategory, &p.TermDescription,
			&p.ExpectedValue, &p.IsMandatory, &p.RelatedClauseTypes); err != nil {
			patRows.Close()
			return out, fmt.Errorf("storage: scan PAT: %w", err)
		}
		out.PATs = append(out.PATs, p)
	}
	patRows.Close()
	if err := patRows.Err(); err != nil {
		return out, fmt.Errorf("storage: iterate PATs: %w", err)
	}

	lclRows, err := db.pool.Query(ctx, `
		SELECT id, clause_id, clause_type, standard_text, category, risk_level,
		       tags, embedding, model_version, active
		FROM library_clauses
		WHERE active = true`)
	if err != nil {
		return out, fmt.Errorf("storage: load LCL: %w", err)
	}
	for lclRows.Next() {
		var l model.LibraryClause
		var embedding pgvector.Vector
		if err := lclRows.Scan(&l.ID, &l.ClauseID, &l.ClauseType, &l.StandardText, &l.Category,
			&l.RiskLevel, &l.Tags, &embedding, &l.ModelVersion, &l.Active); err != nil {
			lclRows.Close()
			return out, fmt.Errorf("storage: scan LCL row: %w", err)
		}
		l.Embedding = embedding.Slice()
		out.ActiveLCL = append(out.ActiveLCL, l)
	}
	lclRows.Close()
	if err := lclRows.Err(); err != nil {
		return out, fmt.Errorf("storage: iterate LCL: %w", err)
	}

	if err := db.pool.QueryRow(ctx, `
		SELECT coalesce(string_agg(content, E'\n' ORDER BY start_char NULLS LAST, id), '')
		FROM clause_boundaries WHERE document_id = $1`, documentID).Scan(&out.FullContractText); err != nil {
		return out, fmt.Errorf("storage: assemble full contract text: %w", err)
	}

	return out, nil
}
