package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const resolveEntitySQL = `
INSERT INTO entities (id, entity_type, canonical_name, confidence, aliases)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (entity_type, canonical_name) DO UPDATE SET
	confidence = GREATEST(entities.confidence, EXCLUDED.confidence),
	aliases = ARRAY(
		SELECT DISTINCT a
		FROM unnest(entities.aliases || EXCLUDED.aliases) AS a
		ORDER BY a
	)
RETURNING id`

const upsertEdgeSQL = `
INSERT INTO entity_relationships (source_id, target_id, relationship_type, strength, evidence)
VALUES ($1, $2, $3, LEAST(GREATEST($4::float8, 0), 1), $5)
ON CONFLICT (source_id, target_id, relationship_type) DO UPDATE SET
	strength = LEAST(
		entity_relationships.strength
			+ (1 - entity_relationships.strength) * LEAST(GREATEST($4::float8, 0), 1),
		1
	),
	evidence = (entity_relationships.evidence || EXCLUDED.evidence)[1:10]
RETURNING strength, evidence`

const insertOccurrenceSQL = `
INSERT INTO entity_occurrences (id, entity_id, domain_id, document_id, char_offset, confidence, context)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// ResolveAndMerge upserts the canonical entity for the mention. The unique
// index on (entity_type, canonical_name) makes concurrent merges of the
// same key converge on one row.
func (s *GraphDBStore) ResolveAndMerge(
	ctx context.Context,
	m common.Mention,
	domainID string,
	documentID string,
) (string, common.EntityOccurrence, error) {
	if m.Canonical == "" || m.Type == "" {
		return "", common.EntityOccurrence{}, fmt.Errorf("mention missing type or canonical name")
	}

	newID, err := gonanoid.New()
	if err != nil {
		return "", common.EntityOccurrence{}, err
	}
	aliases := []string{}
	if m.Surface != "" && m.Surface != m.Canonical {
		aliases = append(aliases, m.Surface)
	}

	var entityID string
	err = s.conn.QueryRow(ctx, resolveEntitySQL,
		newID, string(m.Type), m.Canonical, m.Confidence, aliases,
	).Scan(&entityID)
	if err != nil {
		return "", common.EntityOccurrence{}, fmt.Errorf("resolve entity: %w", err)
	}

	occID, err := gonanoid.New()
	if err != nil {
		return "", common.EntityOccurrence{}, err
	}
	occ := common.EntityOccurrence{
		ID:         occID,
		EntityID:   entityID,
		DomainID:   domainID,
		DocumentID: documentID,
		Offset:     m.Offset,
		Confidence: m.Confidence,
		Context:    m.Context,
	}
	return entityID, occ, nil
}

// ApplyDocument writes the document's occurrences and edge reinforcements in
// a single transaction.
func (s *GraphDBStore) ApplyDocument(ctx context.Context, delta store.DocumentDelta) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document delta: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, occ := range delta.Occurrences {
		_, err := tx.Exec(ctx, insertOccurrenceSQL,
			occ.ID, occ.EntityID, occ.DomainID, occ.DocumentID, occ.Offset, occ.Confidence, occ.Context,
		)
		if err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
	}
	for _, obs := range delta.Edges {
		var strength float64
		var evidence []string
		err := tx.QueryRow(ctx, upsertEdgeSQL,
			obs.SourceID, obs.TargetID, string(obs.Type), obs.Strength, boundEvidence(obs.Evidence),
		).Scan(&strength, &evidence)
		if err != nil {
			return fmt.Errorf("upsert relationship: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *GraphDBStore) UpsertRelationship(ctx context.Context, obs store.EdgeObservation) (common.EntityRelationship, error) {
	edge := common.EntityRelationship{
		SourceID: obs.SourceID,
		TargetID: obs.TargetID,
		Type:     obs.Type,
	}
	err := s.conn.QueryRow(ctx, upsertEdgeSQL,
		obs.SourceID, obs.TargetID, string(obs.Type), obs.Strength, boundEvidence(obs.Evidence),
	).Scan(&edge.Strength, &edge.Evidence)
	if err != nil {
		return common.EntityRelationship{}, fmt.Errorf("upsert relationship: %w", err)
	}
	return edge, nil
}

func (s *GraphDBStore) Entity(ctx context.Context, id string) (common.Entity, error) {
	var e common.Entity
	err := s.conn.QueryRow(ctx,
		`SELECT id, entity_type, canonical_name, confidence, aliases FROM entities WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Type, &e.CanonicalName, &e.Confidence, &e.Aliases)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Entity{}, store.ErrNotFound
	}
	if err != nil {
		return common.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func boundEvidence(evidence []string) []string {
	if evidence == nil {
		return []string{}
	}
	if len(evidence) > 10 {
		return evidence[:10]
	}
	return evidence
}
