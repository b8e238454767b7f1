package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

func (s *GraphDBStore) SetDomainEmbedding(ctx context.Context, domainID string, embedding []float32) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO domain_embeddings (domain_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (domain_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		domainID, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("set domain embedding: %w", err)
	}
	return nil
}

// SimilarDomains compares stored embeddings with the pgvector cosine
// distance operator.
func (s *GraphDBStore) SimilarDomains(ctx context.Context, domainID string, minSimilarity float64) ([]store.DomainSimilarity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT other.domain_id, 1 - (other.embedding <=> ref.embedding) AS similarity
		FROM domain_embeddings ref
		JOIN domain_embeddings other ON other.domain_id <> ref.domain_id
		WHERE ref.domain_id = $1
		  AND 1 - (other.embedding <=> ref.embedding) >= $2
		ORDER BY similarity DESC, other.domain_id`, domainID, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("similar domains: %w", err)
	}
	defer rows.Close()

	var out []store.DomainSimilarity
	for rows.Next() {
		var d store.DomainSimilarity
		if err := rows.Scan(&d.DomainID, &d.Similarity); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) UpsertDomainMeta(ctx context.Context, meta common.DomainMeta) error {
	if meta.DomainID == "" {
		return fmt.Errorf("domain meta missing domain id")
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO domain_meta (domain_id, period_start, period_end, stakeholders)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain_id) DO UPDATE SET
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			stakeholders = EXCLUDED.stakeholders`,
		meta.DomainID, meta.PeriodStart, meta.PeriodEnd, emptyIfNil(meta.Stakeholders),
	)
	if err != nil {
		return fmt.Errorf("upsert domain meta: %w", err)
	}
	return nil
}

func (s *GraphDBStore) DomainMeta(ctx context.Context, domainID string) (common.DomainMeta, error) {
	var meta common.DomainMeta
	err := s.conn.QueryRow(ctx, `
		SELECT domain_id, period_start, period_end, stakeholders
		FROM domain_meta WHERE domain_id = $1`, domainID,
	).Scan(&meta.DomainID, &meta.PeriodStart, &meta.PeriodEnd, &meta.Stakeholders)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.DomainMeta{}, store.ErrNotFound
	}
	if err != nil {
		return common.DomainMeta{}, fmt.Errorf("get domain meta: %w", err)
	}
	return meta, nil
}

func (s *GraphDBStore) DomainMetas(ctx context.Context) ([]common.DomainMeta, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT domain_id, period_start, period_end, stakeholders
		FROM domain_meta ORDER BY domain_id`)
	if err != nil {
		return nil, fmt.Errorf("list domain meta: %w", err)
	}
	defer rows.Close()

	var out []common.DomainMeta
	for rows.Next() {
		var meta common.DomainMeta
		if err := rows.Scan(&meta.DomainID, &meta.PeriodStart, &meta.PeriodEnd, &meta.Stakeholders); err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

var _ store.GraphStore = (*GraphDBStore)(nil)
