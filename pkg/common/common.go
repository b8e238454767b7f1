package common

import "time"

// EntityType classifies what kind of real-world referent an entity is.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityLocation     EntityType = "LOCATION"
	EntityConcept      EntityType = "CONCEPT"
	EntityEvent        EntityType = "EVENT"
	EntityLaw          EntityType = "LAW"
)

// RelationshipType classifies a directed edge between two entities.
type RelationshipType string

const (
	RelationWorksFor  RelationshipType = "WORKS_FOR"
	RelationLocatedIn RelationshipType = "LOCATED_IN"
	RelationSubjectTo RelationshipType = "SUBJECT_TO"
	RelationManagedBy RelationshipType = "MANAGED_BY"
	RelationRelatedTo RelationshipType = "RELATED_TO"
	RelationMentions  RelationshipType = "MENTIONS"
)

// RelationReason names the signal that produced a domain relation.
type RelationReason string

const (
	ReasonSharedEntities     RelationReason = "SHARED_ENTITIES"
	ReasonCommunity          RelationReason = "COMMUNITY_MEMBERSHIP"
	ReasonSemanticSimilarity RelationReason = "SEMANTIC_SIMILARITY"
	ReasonTemporalProximity  RelationReason = "TEMPORAL_PROXIMITY"
	ReasonStakeholderOverlap RelationReason = "STAKEHOLDER_OVERLAP"
)

// Mention is a single typed, positioned entity occurrence produced by an
// extractor before resolution. Surface is the text exactly as it appeared;
// Canonical is the normalized lowercase form used as the merge key.
//
// EntityID is empty until the resolver has merged the mention into the graph.
type Mention struct {
	Type       EntityType `json:"entity_type"`
	Surface    string     `json:"surface"`
	Canonical  string     `json:"canonical_name"`
	Confidence float64    `json:"confidence"`
	Context    string     `json:"context"`
	Offset     int        `json:"offset"`

	EntityID string `json:"entity_id,omitempty"`
}

// Entity is a node in the knowledge graph: a canonicalized real-world
// referent accumulated from one or more mentions. Two mentions merge into
// one entity iff they share both Type and CanonicalName.
//
// Entities are created on first occurrence and never deleted; Confidence is
// the running maximum over all merged mentions, and Aliases collects the
// distinct surface forms observed.
type Entity struct {
	ID            string     `json:"id"`
	Type          EntityType `json:"entity_type"`
	CanonicalName string     `json:"canonical_name"`
	Aliases       []string   `json:"aliases,omitempty"`
	Confidence    float64    `json:"confidence"`
}

// EntityOccurrence places an entity inside a specific document and domain.
// Occurrences are append-only; Confidence never exceeds the owning entity's
// confidence at creation time.
type EntityOccurrence struct {
	ID         string  `json:"id"`
	EntityID   string  `json:"entity_id"`
	DomainID   string  `json:"domain_id"`
	DocumentID string  `json:"document_id"`
	Offset     int     `json:"offset"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// EntityRelationship is a directed, typed, weighted edge between two
// entities. Strength stays in [0,1]; repeated observations of the same
// (source, target, type) triple reinforce the edge via a saturating update
// and never delete it.
type EntityRelationship struct {
	SourceID string           `json:"source_entity_id"`
	TargetID string           `json:"target_entity_id"`
	Type     RelationshipType `json:"relationship_type"`
	Strength float64          `json:"strength"`
	Evidence []string         `json:"evidence,omitempty"`
}

// Community is a thematic cluster of the graph discovered by modularity
// partitioning. Communities are a disposable materialized view: each
// detection run fully replaces the previous set.
type Community struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Summary        string   `json:"summary"`
	KeyThemes      []string `json:"key_themes"`
	MemberDomains  []string `json:"member_domains"`
	EntityIDs      []string `json:"entity_ids"`
	CoherenceScore float64  `json:"coherence_score"`
}

// DomainRelation is a discovered association between two information
// domains. It is always recomputable from the graph plus domain metadata
// and is never persisted as ground truth.
type DomainRelation struct {
	FromDomainID   string         `json:"from_domain_id"`
	ToDomainID     string         `json:"to_domain_id"`
	Reason         RelationReason `json:"relation_reason"`
	Strength       float64        `json:"relation_strength"`
	SharedEntities []string       `json:"shared_entities,omitempty"`
	Explanation    string         `json:"explanation"`
}

// DomainMeta carries the per-domain metadata consumed by the optional
// temporal-proximity and stakeholder-overlap signals.
type DomainMeta struct {
	DomainID     string    `json:"domain_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	Stakeholders []string  `json:"stakeholders,omitempty"`
}
