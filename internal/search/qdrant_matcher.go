package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/qdrant/go-client/qdrant"

	"github.com/clauseguard/reconcile/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// LibraryPoint is the data needed to upsert a library clause into Qdrant.
// The Legal Clause Library is shared across tenants (spec §3 lists no
// tenant_id on LibraryClause), so no tenant field is carried in payload.
type LibraryPoint struct {
	LibraryClauseID uuid.UUID
	ClauseID        string
	ClauseType      string
	StandardText    string
	RiskLevel       model.RiskLevel
	ModelVersion    string
	Embedding       []float32
}

// QdrantMatcher implements Matcher backed by Qdrant Cloud. Adapted from the
// teacher's decision index: same over-fetch pattern, repointed at
// library_clauses instead of decisions. The teacher's scoping filter is not
// carried over: searches cover the whole collection, whatever the tenant.
type QdrantMatcher struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	healthMu  sync.Mutex
	lastCheck time.Time
	lastErr   error
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantMatcher creates a new QdrantMatcher and connects to the Qdrant
// server via gRPC.
func NewQdrantMatcher(cfg QdrantConfig, logger *slog.Logger) (*QdrantMatcher, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantMatcher{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist, with
// HNSW parameters tuned for cosine similarity over clause embeddings.
func (q *QdrantMatcher) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}
	if exists {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
		return nil
	}

	m := uint64(16)
	efConstruct := uint64(128)

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dims,
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M:           &m,
				EfConstruct: &efConstruct,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("search: create collection %q: %w", q.collection, err)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"clause_id", "clause_type", "risk_level"} {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("search: create index on %q: %w", field, err)
		}
	}

	boolType := qdrant.FieldType_FieldTypeBool
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "active",
		FieldType:      &boolType,
	}); err != nil {
		return fmt.Errorf("search: create index on %q: %w", "active", err)
	}

	q.logger.Info("qdrant: created collection with payload indexes", "collection", q.collection, "dims", q.dims)
	return nil
}

// TopN queries Qdrant for the N nearest active library clauses. tenantID is
// accepted for Matcher interface parity with the Postgres fallback but not
// filtered on — the Legal Clause Library is shared across tenants.
// Over-fetches n*3 so the caller's clause_type/risk_level tie-break can
// re-order within ties without losing true nearest neighbors.
func (q *QdrantMatcher) TopN(ctx context.Context, tenantID uuid.UUID, embedding pgvector.Vector, clauseType string, n int) ([]Candidate, error) {
	_ = tenantID
	must := []*qdrant.Condition{
		qdrant.NewMatchBool("active", true),
	}

	fetchLimit := uint64(n) * 3 //nolint:gosec // n is bounded by caller (spec N=5)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(embedding.Slice()),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	candidates := make([]Candidate, 0, len(scored))
	for _, sp := range scored {
		idStr := sp.Id.GetUuid()
		if idStr == "" {
			continue
		}
		libraryClauseID, err := uuid.Parse(idStr)
		if err != nil {
			q.logger.Warn("qdrant: invalid UUID in point ID", "id", idStr)
			continue
		}
		payload := sp.GetPayload()
		candidates = append(candidates, Candidate{
			LibraryClauseID: libraryClauseID,
			ClauseID:        payload["clause_id"].GetStringValue(),
			ClauseType:      payload["clause_type"].GetStringValue(),
			StandardText:    payload["standard_text"].GetStringValue(),
			RiskLevel:       model.RiskLevel(payload["risk_level"].GetStringValue()),
			Similarity:      sp.Score,
		})
	}

	sortCandidates(candidates, clauseType)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// Upsert inserts or updates library clause points in Qdrant.
func (q *QdrantMatcher) Upsert(ctx context.Context, points []LibraryPoint) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := map[string]any{
			"clause_id":     p.ClauseID,
			"clause_type":   p.ClauseType,
			"standard_text": p.StandardText,
			"risk_level":    string(p.RiskLevel),
			"model_version": p.ModelVersion,
			"active":        true,
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.LibraryClauseID.String()),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("search: qdrant upsert %d points: %w", len(points), err)
	}
	return nil
}

// DeleteByIDs removes specific library clauses from Qdrant.
func (q *QdrantMatcher) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id.String())
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: pointIDs,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant delete %d points: %w", len(ids), err)
	}
	return nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds to avoid hammering the health endpoint on every match request.
func (q *QdrantMatcher) Healthy(ctx context.Context) error {
	q.healthMu.Lock()
	defer q.healthMu.Unlock()

	if time.Since(q.lastCheck) < 5*time.Second {
		return q.lastErr
	}

	_, err := q.client.HealthCheck(ctx)
	q.lastCheck = time.Now()
	if err != nil {
		q.lastErr = fmt.Errorf("search: qdrant unhealthy: %w", err)
	} else {
		q.lastErr = nil
	}
	return q.lastErr
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantMatcher) Close() error {
	return q.client.Close()
}
