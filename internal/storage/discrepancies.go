package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clauseguard/reconcile/internal/model"
)

// WriteDiscrepancies persists a batch of discrepancies for a document. Called
// by C9 (missing-mandatory) and by the orchestrator for per-clause
// discrepancies derived from C6/C7 results.
func (db *DB) WriteDiscrepancies(ctx context.Context, discrepancies []model.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range discrepancies {
		batch.Queue(`
			INSERT INTO discrepancies (id, document_id, clause_boundary_id, pat_id, type, severity, term_category, reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			d.ID, d.DocumentID, d.ClauseBoundaryID, d.PATID, d.Type, d.Severity, d.TermCategory, d.Reason)
	}
	results := db.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range discrepancies {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("storage: write discrepancies: %w", err)
		}
	}
	return nil
}

// ListDiscrepancies implements the public list_discrepancies(document_id)
// operation (spec §6).
func (db *DB) ListDiscrepancies(ctx context.Context, documentID uuid.UUID) ([]model.Discrepancy, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, document_id, clause_boundary_id, pat_id, type, severity, term_category, reason
		FROM discrepancies WHERE document_id = $1 ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list discrepancies: %w", err)
	}
	defer rows.Close()

	var out []model.Discrepancy
	for rows.Next() {
		var d model.Discrepancy
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.ClauseBoundaryID, &d.PATID, &d.Type, &d.Severity,
			&d.TermCategory, &d.Reason); err != nil {
			return nil, fmt.Errorf("storage: scan discrepancy: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
