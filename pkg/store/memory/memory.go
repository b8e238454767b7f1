// Package memory implements store.GraphStore entirely in process memory.
// It backs tests and single-node deployments without postgres.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	lockStripes = 64
	maxEvidence = 10
	maxDepth    = 5
)

// Store is an in-memory GraphStore. Merge operations are serialized per
// canonical key with striped mutexes; the community snapshot is swapped
// atomically so readers never observe a partial detection run.
type Store struct {
	keyLocks [lockStripes]sync.Mutex

	mu            sync.RWMutex
	entities      map[string]*common.Entity
	idByKey       map[string]string
	occurrences   []common.EntityOccurrence
	occCount      map[string]int
	entityDomains map[string]map[string]struct{}
	domainNames   map[string]map[string]string
	edges         map[string]*common.EntityRelationship
	embeddings    map[string][]float32
	metas         map[string]common.DomainMeta

	communities atomic.Pointer[[]common.Community]
}

// NewStore returns an empty in-memory graph store.
func NewStore() *Store {
	s := &Store{
		entities:      make(map[string]*common.Entity),
		idByKey:       make(map[string]string),
		occCount:      make(map[string]int),
		entityDomains: make(map[string]map[string]struct{}),
		domainNames:   make(map[string]map[string]string),
		edges:         make(map[string]*common.EntityRelationship),
		embeddings:    make(map[string][]float32),
		metas:         make(map[string]common.DomainMeta),
	}
	empty := []common.Community{}
	s.communities.Store(&empty)
	return s
}

func mergeKey(t common.EntityType, canonical string) string {
	return string(t) + "|" + canonical
}

func edgeKey(source, target string, t common.RelationshipType) string {
	return source + "|" + target + "|" + string(t)
}

func (s *Store) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.keyLocks[h.Sum32()%lockStripes]
}

// ResolveAndMerge maps the mention onto its canonical entity, creating it on
// first sight. Concurrent calls for the same (type, canonical_name) key are
// serialized; calls for different keys proceed in parallel.
func (s *Store) ResolveAndMerge(
	ctx context.Context,
	m common.Mention,
	domainID string,
	documentID string,
) (string, common.EntityOccurrence, error) {
	if m.Canonical == "" || m.Type == "" {
		return "", common.EntityOccurrence{}, fmt.Errorf("mention missing type or canonical name")
	}

	key := mergeKey(m.Type, m.Canonical)
	lock := s.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	entity, ok := func() (*common.Entity, bool) {
		id, ok := s.idByKey[key]
		if !ok {
			return nil, false
		}
		return s.entities[id], true
	}()
	if !ok {
		id, err := gonanoid.New()
		if err != nil {
			s.mu.Unlock()
			return "", common.EntityOccurrence{}, err
		}
		entity = &common.Entity{
			ID:            id,
			Type:          m.Type,
			CanonicalName: m.Canonical,
			Confidence:    m.Confidence,
		}
		s.idByKey[key] = id
		s.entities[id] = entity
	}
	if m.Confidence > entity.Confidence {
		entity.Confidence = m.Confidence
	}
	if m.Surface != "" && m.Surface != entity.CanonicalName && !slices.Contains(entity.Aliases, m.Surface) {
		entity.Aliases = append(entity.Aliases, m.Surface)
	}
	entityID := entity.ID
	s.mu.Unlock()

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

// ApplyDocument commits occurrences and edge reinforcements under a single
// lock so a document's contribution is all-or-nothing.
func (s *Store) ApplyDocument(ctx context.Context, delta store.DocumentDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, occ := range delta.Occurrences {
		if _, ok := s.entities[occ.EntityID]; !ok {
			return fmt.Errorf("occurrence references unknown entity %s: %w", occ.EntityID, store.ErrNotFound)
		}
	}
	for _, obs := range delta.Edges {
		if _, ok := s.entities[obs.SourceID]; !ok {
			return fmt.Errorf("edge references unknown entity %s: %w", obs.SourceID, store.ErrNotFound)
		}
		if _, ok := s.entities[obs.TargetID]; !ok {
			return fmt.Errorf("edge references unknown entity %s: %w", obs.TargetID, store.ErrNotFound)
		}
	}

	for _, occ := range delta.Occurrences {
		s.occurrences = append(s.occurrences, occ)
		s.occCount[occ.EntityID]++
		if s.entityDomains[occ.EntityID] == nil {
			s.entityDomains[occ.EntityID] = make(map[string]struct{})
		}
		s.entityDomains[occ.EntityID][occ.DomainID] = struct{}{}
		if s.domainNames[occ.DomainID] == nil {
			s.domainNames[occ.DomainID] = make(map[string]string)
		}
		s.domainNames[occ.DomainID][occ.EntityID] = s.entities[occ.EntityID].CanonicalName
	}
	for _, obs := range delta.Edges {
		s.applyEdgeLocked(obs)
	}
	return nil
}

func (s *Store) applyEdgeLocked(obs store.EdgeObservation) *common.EntityRelationship {
	key := edgeKey(obs.SourceID, obs.TargetID, obs.Type)
	edge, ok := s.edges[key]
	if !ok {
		edge = &common.EntityRelationship{
			SourceID: obs.SourceID,
			TargetID: obs.TargetID,
			Type:     obs.Type,
		}
		s.edges[key] = edge
	}
	edge.Strength = store.SaturateStrength(edge.Strength, obs.Strength)
	for _, ev := range obs.Evidence {
		if len(edge.Evidence) >= maxEvidence {
			break
		}
		edge.Evidence = append(edge.Evidence, ev)
	}
	return edge
}

func (s *Store) UpsertRelationship(ctx context.Context, obs store.EdgeObservation) (common.EntityRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.applyEdgeLocked(obs), nil
}

func (s *Store) Entity(ctx context.Context, id string) (common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return common.Entity{}, store.ErrNotFound
	}
	return *e, nil
}

// Neighbors walks the undirected edge set breadth-first. Depth is clamped
// to [1, 5].
func (s *Store) Neighbors(ctx context.Context, entityID string, depth int) (store.Subgraph, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.entities[entityID]
	if !ok {
		return store.Subgraph{}, store.ErrNotFound
	}

	adjacency := make(map[string][]*common.EntityRelationship)
	for _, e := range s.edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e)
		adjacency[e.TargetID] = append(adjacency[e.TargetID], e)
	}

	visited := map[string]struct{}{entityID: {}}
	seenEdges := make(map[*common.EntityRelationship]struct{})
	result := store.Subgraph{Nodes: []common.Entity{*root}}

	frontier := []string{entityID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, e := range adjacency[id] {
				if _, ok := seenEdges[e]; !ok {
					seenEdges[e] = struct{}{}
					result.Edges = append(result.Edges, *e)
				}
				other := e.TargetID
				if other == id {
					other = e.SourceID
				}
				if _, ok := visited[other]; ok {
					continue
				}
				visited[other] = struct{}{}
				result.Nodes = append(result.Nodes, *s.entities[other])
				next = append(next, other)
			}
		}
		frontier = next
	}
	return result, nil
}

func (s *Store) EntitiesForDomain(ctx context.Context, domainID string) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Entity, 0, len(s.domainNames[domainID]))
	for id := range s.domainNames[domainID] {
		out = append(out, *s.entities[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out, nil
}

func (s *Store) DomainEntityOverlaps(ctx context.Context, domainID string) ([]store.DomainOverlap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref := s.domainNames[domainID]
	if len(ref) == 0 {
		return nil, nil
	}

	var out []store.DomainOverlap
	for other, names := range s.domainNames {
		if other == domainID {
			continue
		}
		var shared []string
		for id := range names {
			if _, ok := ref[id]; ok {
				shared = append(shared, names[id])
			}
		}
		if len(shared) == 0 {
			continue
		}
		sort.Strings(shared)
		out = append(out, store.DomainOverlap{
			DomainID:    other,
			SharedNames: shared,
			DomainSize:  len(ref),
			OtherSize:   len(names),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DomainID < out[j].DomainID })
	return out, nil
}

func (s *Store) KeyConcepts(ctx context.Context, domainID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		name  string
		count int
	}
	var candidates []ranked
	for id, name := range s.domainNames[domainID] {
		t := s.entities[id].Type
		if t != common.EntityConcept && t != common.EntityLaw {
			continue
		}
		candidates = append(candidates, ranked{name: name, count: s.occCount[id]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].name < candidates[j].name
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
	}
	return out, nil
}

// PublishCommunities replaces the snapshot with a copy of the given set.
func (s *Store) PublishCommunities(ctx context.Context, communities []common.Community) error {
	snapshot := make([]common.Community, len(communities))
	copy(snapshot, communities)
	s.communities.Store(&snapshot)
	return nil
}

func (s *Store) Communities(ctx context.Context) ([]common.Community, error) {
	return *s.communities.Load(), nil
}

func (s *Store) CommunitiesForDomain(ctx context.Context, domainID string) ([]common.Community, error) {
	all := *s.communities.Load()
	var out []common.Community
	for _, c := range all {
		if slices.Contains(c.MemberDomains, domainID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) SetDomainEmbedding(ctx context.Context, domainID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[domainID] = slices.Clone(embedding)
	return nil
}

func (s *Store) SimilarDomains(ctx context.Context, domainID string, minSimilarity float64) ([]store.DomainSimilarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.embeddings[domainID]
	if !ok {
		return nil, nil
	}
	var out []store.DomainSimilarity
	for other, emb := range s.embeddings {
		if other == domainID {
			continue
		}
		sim := store.CosineSimilarity(ref, emb)
		if sim >= minSimilarity {
			out = append(out, store.DomainSimilarity{DomainID: other, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].DomainID < out[j].DomainID
	})
	return out, nil
}

func (s *Store) UpsertDomainMeta(ctx context.Context, meta common.DomainMeta) error {
	if meta.DomainID == "" {
		return fmt.Errorf("domain meta missing domain id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.DomainID] = meta
	return nil
}

func (s *Store) DomainMeta(ctx context.Context, domainID string) (common.DomainMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metas[domainID]
	if !ok {
		return common.DomainMeta{}, store.ErrNotFound
	}
	return meta, nil
}

func (s *Store) DomainMetas(ctx context.Context) ([]common.DomainMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.DomainMeta, 0, len(s.metas))
	for _, m := range s.metas {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DomainID < out[j].DomainID })
	return out, nil
}

// Snapshot deep-copies the graph for batch processing.
func (s *Store) Snapshot(ctx context.Context) (store.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := store.GraphSnapshot{
		Entities:         make([]common.Entity, 0, len(s.entities)),
		Edges:            make([]common.EntityRelationship, 0, len(s.edges)),
		EntityDomains:    make(map[string][]string, len(s.entityDomains)),
		OccurrenceCounts: make(map[string]int, len(s.occCount)),
	}
	for _, e := range s.entities {
		snap.Entities = append(snap.Entities, *e)
	}
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	for _, e := range s.edges {
		snap.Edges = append(snap.Edges, *e)
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Type < b.Type
	})
	for id, domains := range s.entityDomains {
		list := make([]string, 0, len(domains))
		for d := range domains {
			list = append(list, d)
		}
		sort.Strings(list)
		snap.EntityDomains[id] = list
	}
	for id, n := range s.occCount {
		snap.OccurrenceCounts[id] = n
	}
	return snap, nil
}

var _ store.GraphStore = (*Store)(nil)
