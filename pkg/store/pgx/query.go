package pgx

import (
	"context"
	"fmt"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const neighborsSQL = `
WITH RECURSIVE walk(id, depth) AS (
	SELECT $1::text, 0
	UNION
	SELECT
		CASE WHEN r.source_id = w.id THEN r.target_id ELSE r.source_id END,
		w.depth + 1
	FROM entity_relationships r
	JOIN walk w ON r.source_id = w.id OR r.target_id = w.id
	WHERE w.depth < $2
),
reached AS (SELECT DISTINCT id FROM walk)
SELECT e.id, e.entity_type, e.canonical_name, e.confidence, e.aliases
FROM entities e
JOIN reached ON reached.id = e.id
ORDER BY e.id`

const neighborEdgesSQL = `
WITH RECURSIVE walk(id, depth) AS (
	SELECT $1::text, 0
	UNION
	SELECT
		CASE WHEN r.source_id = w.id THEN r.target_id ELSE r.source_id END,
		w.depth + 1
	FROM entity_relationships r
	JOIN walk w ON r.source_id = w.id OR r.target_id = w.id
	WHERE w.depth < $2
),
reached AS (SELECT DISTINCT id FROM walk)
SELECT r.source_id, r.target_id, r.relationship_type, r.strength, r.evidence
FROM entity_relationships r
WHERE r.source_id IN (SELECT id FROM reached)
  AND r.target_id IN (SELECT id FROM reached)
ORDER BY r.source_id, r.target_id, r.relationship_type`

// Neighbors walks the undirected edge set up to depth hops with a recursive
// CTE. Depth is clamped to [1, 5].
func (s *GraphDBStore) Neighbors(ctx context.Context, entityID string, depth int) (store.Subgraph, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 5 {
		depth = 5
	}

	if _, err := s.Entity(ctx, entityID); err != nil {
		return store.Subgraph{}, err
	}

	var out store.Subgraph

	rows, err := s.conn.Query(ctx, neighborsSQL, entityID, depth)
	if err != nil {
		return store.Subgraph{}, fmt.Errorf("neighbor nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.CanonicalName, &e.Confidence, &e.Aliases); err != nil {
			return store.Subgraph{}, err
		}
		out.Nodes = append(out.Nodes, e)
	}
	if err := rows.Err(); err != nil {
		return store.Subgraph{}, err
	}
	rows.Close()

	rows, err = s.conn.Query(ctx, neighborEdgesSQL, entityID, depth)
	if err != nil {
		return store.Subgraph{}, fmt.Errorf("neighbor edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e common.EntityRelationship
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Type, &e.Strength, &e.Evidence); err != nil {
			return store.Subgraph{}, err
		}
		out.Edges = append(out.Edges, e)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) EntitiesForDomain(ctx context.Context, domainID string) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT e.id, e.entity_type, e.canonical_name, e.confidence, e.aliases
		FROM entity_occurrences o
		JOIN entities e ON e.id = o.entity_id
		WHERE o.domain_id = $1
		ORDER BY e.canonical_name`, domainID)
	if err != nil {
		return nil, fmt.Errorf("entities for domain: %w", err)
	}
	defer rows.Close()

	var out []common.Entity
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.CanonicalName, &e.Confidence, &e.Aliases); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Shared entities are counted per entity id, matching the in-memory store:
// two entities sharing a canonical name under different types count twice,
// and the name appears twice in the shared list.
const domainOverlapsSQL = `
WITH ref AS (
	SELECT DISTINCT entity_id FROM entity_occurrences WHERE domain_id = $1
),
sizes AS (
	SELECT domain_id, COUNT(DISTINCT entity_id) AS n
	FROM entity_occurrences
	GROUP BY domain_id
)
SELECT
	o.domain_id,
	ARRAY(
		SELECT e.canonical_name
		FROM (
			SELECT DISTINCT oo.entity_id
			FROM entity_occurrences oo
			JOIN ref r ON r.entity_id = oo.entity_id
			WHERE oo.domain_id = o.domain_id
		) shared
		JOIN entities e ON e.id = shared.entity_id
		ORDER BY e.canonical_name
	),
	(SELECT n FROM sizes WHERE domain_id = $1),
	s.n
FROM entity_occurrences o
JOIN ref ON ref.entity_id = o.entity_id
JOIN sizes s ON s.domain_id = o.domain_id
WHERE o.domain_id <> $1
GROUP BY o.domain_id, s.n
ORDER BY o.domain_id`

func (s *GraphDBStore) DomainEntityOverlaps(ctx context.Context, domainID string) ([]store.DomainOverlap, error) {
	rows, err := s.conn.Query(ctx, domainOverlapsSQL, domainID)
	if err != nil {
		return nil, fmt.Errorf("domain overlaps: %w", err)
	}
	defer rows.Close()

	var out []store.DomainOverlap
	for rows.Next() {
		var o store.DomainOverlap
		if err := rows.Scan(&o.DomainID, &o.SharedNames, &o.DomainSize, &o.OtherSize); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) KeyConcepts(ctx context.Context, domainID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(ctx, `
		SELECT e.canonical_name
		FROM entity_occurrences o
		JOIN entities e ON e.id = o.entity_id
		WHERE o.domain_id = $1 AND e.entity_type IN ('CONCEPT', 'LAW')
		GROUP BY e.canonical_name
		ORDER BY COUNT(*) DESC, e.canonical_name
		LIMIT $2`, domainID, limit)
	if err != nil {
		return nil, fmt.Errorf("key concepts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Snapshot reads the full graph for a batch run inside one repeatable-read
// transaction, so community detection always works on a graph state that
// actually existed. Ingestion committing mid-read is not observed.
func (s *GraphDBStore) Snapshot(ctx context.Context) (store.GraphSnapshot, error) {
	snap := store.GraphSnapshot{
		EntityDomains:    make(map[string][]string),
		OccurrenceCounts: make(map[string]int),
	}

	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{
		IsoLevel:   pgxv5.RepeatableRead,
		AccessMode: pgxv5.ReadOnly,
	})
	if err != nil {
		return store.GraphSnapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, entity_type, canonical_name, confidence, aliases FROM entities ORDER BY id`)
	if err != nil {
		return store.GraphSnapshot{}, fmt.Errorf("snapshot entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.CanonicalName, &e.Confidence, &e.Aliases); err != nil {
			return store.GraphSnapshot{}, err
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return store.GraphSnapshot{}, err
	}
	rows.Close()

	rows, err = tx.Query(ctx, `
		SELECT source_id, target_id, relationship_type, strength, evidence
		FROM entity_relationships
		ORDER BY source_id, target_id, relationship_type`)
	if err != nil {
		return store.GraphSnapshot{}, fmt.Errorf("snapshot edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e common.EntityRelationship
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Type, &e.Strength, &e.Evidence); err != nil {
			return store.GraphSnapshot{}, err
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return store.GraphSnapshot{}, err
	}
	rows.Close()

	rows, err = tx.Query(ctx, `
		SELECT entity_id, COUNT(*), ARRAY_AGG(DISTINCT domain_id ORDER BY domain_id)
		FROM entity_occurrences
		GROUP BY entity_id`)
	if err != nil {
		return store.GraphSnapshot{}, fmt.Errorf("snapshot occurrences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var count int
		var domains []string
		if err := rows.Scan(&id, &count, &domains); err != nil {
			return store.GraphSnapshot{}, err
		}
		snap.OccurrenceCounts[id] = count
		snap.EntityDomains[id] = domains
	}
	if err := rows.Err(); err != nil {
		return store.GraphSnapshot{}, err
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return store.GraphSnapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}
