// Package store defines the persistence boundary of the knowledge graph.
package store

import (
	"context"
	"errors"

	"github.com/iou-concept/kompas/pkg/common"
)

// ErrNotFound is returned when a requested entity or domain does not exist.
var ErrNotFound = errors.New("store: not found")

// EdgeObservation is a single inferred co-occurrence of two entities inside
// one document. Applying an observation reinforces the persistent edge with
// the saturating update rather than overwriting it.
type EdgeObservation struct {
	SourceID string
	TargetID string
	Type     common.RelationshipType
	Strength float64
	Evidence []string
}

// DocumentDelta is everything one processed document contributes to the
// graph: its entity occurrences plus the edge observations inferred from
// them. A delta is committed atomically; a half-applied document is never
// visible.
type DocumentDelta struct {
	DocumentID  string
	DomainID    string
	Occurrences []common.EntityOccurrence
	Edges       []EdgeObservation
}

// Subgraph is a bounded set of nodes and edges, used for entity network
// traversal results.
type Subgraph struct {
	Nodes []common.Entity             `json:"nodes"`
	Edges []common.EntityRelationship `json:"edges"`
}

// DomainOverlap describes how another domain's entity set intersects a
// reference domain's. SharedNames holds canonical names of the shared
// entities; the sizes are the distinct-entity counts of both domains.
type DomainOverlap struct {
	DomainID    string
	SharedNames []string
	DomainSize  int
	OtherSize   int
}

// DomainSimilarity is a cosine-similarity match against a stored domain
// embedding.
type DomainSimilarity struct {
	DomainID   string
	Similarity float64
}

// GraphSnapshot is a point-in-time copy of the graph handed to the
// community detector. EntityDomains maps entity id to the domains it occurs
// in; OccurrenceCounts maps entity id to its total occurrence count.
type GraphSnapshot struct {
	Entities         []common.Entity
	Edges            []common.EntityRelationship
	EntityDomains    map[string][]string
	OccurrenceCounts map[string]int
}

// GraphStore persists and queries the knowledge graph. Implementations must
// serialize ResolveAndMerge per (type, canonical_name) key and apply
// document deltas atomically.
type GraphStore interface {
	// ResolveAndMerge maps a mention onto its canonical entity, creating the
	// entity on first sight and merging (max confidence, alias accumulation)
	// otherwise. It returns the entity id and the occurrence record for the
	// mention; the occurrence is not persisted until ApplyDocument.
	ResolveAndMerge(ctx context.Context, m common.Mention, domainID string, documentID string) (string, common.EntityOccurrence, error)

	// ApplyDocument commits a document's occurrences and edge reinforcements
	// in one atomic step.
	ApplyDocument(ctx context.Context, delta DocumentDelta) error

	// UpsertRelationship applies a single edge observation outside a
	// document delta and returns the resulting edge.
	UpsertRelationship(ctx context.Context, obs EdgeObservation) (common.EntityRelationship, error)

	Entity(ctx context.Context, id string) (common.Entity, error)

	// Neighbors walks the undirected edge set breadth-first from entityID up
	// to maxDepth hops and returns the visited subgraph.
	Neighbors(ctx context.Context, entityID string, maxDepth int) (Subgraph, error)

	EntitiesForDomain(ctx context.Context, domainID string) ([]common.Entity, error)

	// DomainEntityOverlaps returns, for every other domain sharing at least
	// one entity with domainID, the shared canonical names and both domain
	// sizes.
	DomainEntityOverlaps(ctx context.Context, domainID string) ([]DomainOverlap, error)

	// KeyConcepts returns the canonical names of the domain's most frequent
	// CONCEPT and LAW entities, most frequent first.
	KeyConcepts(ctx context.Context, domainID string, limit int) ([]string, error)

	// PublishCommunities atomically replaces the community snapshot.
	PublishCommunities(ctx context.Context, communities []common.Community) error
	Communities(ctx context.Context) ([]common.Community, error)
	CommunitiesForDomain(ctx context.Context, domainID string) ([]common.Community, error)

	SetDomainEmbedding(ctx context.Context, domainID string, embedding []float32) error
	// SimilarDomains returns other domains whose stored embedding has cosine
	// similarity >= minSimilarity with domainID's embedding.
	SimilarDomains(ctx context.Context, domainID string, minSimilarity float64) ([]DomainSimilarity, error)

	UpsertDomainMeta(ctx context.Context, meta common.DomainMeta) error
	DomainMeta(ctx context.Context, domainID string) (common.DomainMeta, error)
	DomainMetas(ctx context.Context) ([]common.DomainMeta, error)

	// Snapshot copies the current graph for batch processing.
	Snapshot(ctx context.Context) (GraphSnapshot, error)
}
