package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"
)

func mention(name string, t common.EntityType, confidence float64) common.Mention {
	return common.Mention{
		Type:       t,
		Surface:    name,
		Canonical:  name,
		Confidence: confidence,
	}
}

func TestResolveAndMergeIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first, _, err := s.ResolveAndMerge(ctx, mention("gemeente utrecht", common.EntityOrganization, 0.8), "dom-1", "doc-1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, _, err := s.ResolveAndMerge(ctx, mention("gemeente utrecht", common.EntityOrganization, 0.9), "dom-2", "doc-2")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first != second {
		t.Errorf("same (type, canonical) must resolve to one entity: %s vs %s", first, second)
	}

	e, err := s.Entity(ctx, first)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if e.Confidence != 0.9 {
		t.Errorf("expected running-max confidence 0.9, got %v", e.Confidence)
	}
}

func TestResolveAndMergeTypeSplits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	org, _, err := s.ResolveAndMerge(ctx, mention("utrecht", common.EntityOrganization, 0.8), "dom-1", "doc-1")
	if err != nil {
		t.Fatalf("resolve org: %v", err)
	}
	loc, _, err := s.ResolveAndMerge(ctx, mention("utrecht", common.EntityLocation, 0.8), "dom-1", "doc-1")
	if err != nil {
		t.Fatalf("resolve loc: %v", err)
	}
	if org == loc {
		t.Error("same name with different types must stay separate entities")
	}
}

func TestResolveAndMergeAliases(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	m := common.Mention{
		Type:       common.EntityLaw,
		Surface:    "Woo",
		Canonical:  "wet open overheid",
		Confidence: 0.95,
	}
	id, _, err := s.ResolveAndMerge(ctx, m, "dom-1", "doc-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// same surface again must not duplicate the alias
	if _, _, err := s.ResolveAndMerge(ctx, m, "dom-1", "doc-2"); err != nil {
		t.Fatalf("re-resolve: %v", err)
	}

	e, err := s.Entity(ctx, id)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if len(e.Aliases) != 1 || e.Aliases[0] != "Woo" {
		t.Errorf("expected aliases [Woo], got %v", e.Aliases)
	}
}

func TestResolveAndMergeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := s.ResolveAndMerge(ctx,
				mention("omgevingswet", common.EntityLaw, 0.95), "dom-1", fmt.Sprintf("doc-%d", i))
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent merges diverged: %v", ids)
		}
	}
	snap, _ := s.Snapshot(ctx)
	if len(snap.Entities) != 1 {
		t.Errorf("expected 1 entity after concurrent merges, got %d", len(snap.Entities))
	}
}

func TestApplyDocumentAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id, occ, err := s.ResolveAndMerge(ctx, mention("woo", common.EntityLaw, 0.95), "dom-1", "doc-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// delta referencing an unknown entity must fail without side effects
	bad := store.DocumentDelta{
		DocumentID:  "doc-1",
		DomainID:    "dom-1",
		Occurrences: []common.EntityOccurrence{occ},
		Edges: []store.EdgeObservation{{
			SourceID: id, TargetID: "missing", Type: common.RelationRelatedTo, Strength: 0.5,
		}},
	}
	if err := s.ApplyDocument(ctx, bad); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	snap, _ := s.Snapshot(ctx)
	if len(snap.OccurrenceCounts) != 0 {
		t.Error("failed delta must not leave partial occurrences")
	}
}

func TestUpsertRelationshipSaturates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	obs := store.EdgeObservation{SourceID: "a", TargetID: "b", Type: common.RelationRelatedTo, Strength: 0.6}
	edge, err := s.UpsertRelationship(ctx, obs)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if edge.Strength != 0.6 {
		t.Errorf("expected 0.6, got %v", edge.Strength)
	}

	obs.Strength = 0.9
	edge, err = s.UpsertRelationship(ctx, obs)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if diff := edge.Strength - 0.96; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected saturated 0.96, got %v", edge.Strength)
	}
}

func TestUpsertRelationshipBoundsEvidence(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	obs := store.EdgeObservation{SourceID: "a", TargetID: "b", Type: common.RelationRelatedTo, Strength: 0.1}
	for i := 0; i < 30; i++ {
		obs.Evidence = []string{fmt.Sprintf("snippet %d", i)}
		if _, err := s.UpsertRelationship(ctx, obs); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	edge, err := s.UpsertRelationship(ctx, store.EdgeObservation{
		SourceID: "a", TargetID: "b", Type: common.RelationRelatedTo, Strength: 0,
	})
	if err != nil {
		t.Fatalf("final upsert: %v", err)
	}
	if len(edge.Evidence) > 10 {
		t.Errorf("evidence list must stay bounded, got %d entries", len(edge.Evidence))
	}
}

func ingestNames(t *testing.T, s *Store, domainID string, names []string) {
	t.Helper()
	ctx := context.Background()
	delta := store.DocumentDelta{DocumentID: "doc-" + domainID, DomainID: domainID}
	for _, name := range names {
		_, occ, err := s.ResolveAndMerge(ctx, mention(name, common.EntityConcept, 0.9), domainID, delta.DocumentID)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		delta.Occurrences = append(delta.Occurrences, occ)
	}
	if err := s.ApplyDocument(ctx, delta); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestDomainEntityOverlaps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ingestNames(t, s, "dom-a", []string{"woo", "avg", "archiefwet"})
	ingestNames(t, s, "dom-b", []string{"woo", "avg"})
	ingestNames(t, s, "dom-c", []string{"subsidie"})

	overlaps, err := s.DomainEntityOverlaps(ctx, "dom-a")
	if err != nil {
		t.Fatalf("overlaps: %v", err)
	}
	if len(overlaps) != 1 {
		t.Fatalf("expected 1 overlapping domain, got %d", len(overlaps))
	}
	o := overlaps[0]
	if o.DomainID != "dom-b" || o.DomainSize != 3 || o.OtherSize != 2 {
		t.Errorf("unexpected overlap: %+v", o)
	}
	if len(o.SharedNames) != 2 || o.SharedNames[0] != "avg" || o.SharedNames[1] != "woo" {
		t.Errorf("expected sorted shared names [avg woo], got %v", o.SharedNames)
	}
}

// Overlap is counted per shared entity, not per distinct name: "utrecht" as
// a location and "utrecht" as a concept are two shared entities, and the
// name appears twice in the shared list.
func TestDomainEntityOverlapsSameNameDifferentType(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for _, domainID := range []string{"dom-a", "dom-b"} {
		delta := store.DocumentDelta{DocumentID: "doc-" + domainID, DomainID: domainID}
		for _, typ := range []common.EntityType{common.EntityLocation, common.EntityConcept} {
			_, occ, err := s.ResolveAndMerge(ctx, mention("utrecht", typ, 0.9), domainID, delta.DocumentID)
			if err != nil {
				t.Fatalf("resolve utrecht %s: %v", typ, err)
			}
			delta.Occurrences = append(delta.Occurrences, occ)
		}
		if err := s.ApplyDocument(ctx, delta); err != nil {
			t.Fatalf("apply %s: %v", domainID, err)
		}
	}

	overlaps, err := s.DomainEntityOverlaps(ctx, "dom-a")
	if err != nil {
		t.Fatalf("overlaps: %v", err)
	}
	if len(overlaps) != 1 {
		t.Fatalf("expected 1 overlapping domain, got %d", len(overlaps))
	}
	o := overlaps[0]
	if o.DomainSize != 2 || o.OtherSize != 2 {
		t.Errorf("expected both domain sizes 2, got %+v", o)
	}
	if len(o.SharedNames) != 2 || o.SharedNames[0] != "utrecht" || o.SharedNames[1] != "utrecht" {
		t.Errorf("expected shared names [utrecht utrecht], got %v", o.SharedNames)
	}
}

func TestNeighborsDepth(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	// chain: a - b - c - d
	ids := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d"} {
		id, _, err := s.ResolveAndMerge(ctx, mention(name, common.EntityConcept, 0.9), "dom-1", "doc-1")
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		ids[name] = id
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		_, err := s.UpsertRelationship(ctx, store.EdgeObservation{
			SourceID: ids[pair[0]], TargetID: ids[pair[1]], Type: common.RelationRelatedTo, Strength: 0.5,
		})
		if err != nil {
			t.Fatalf("edge %v: %v", pair, err)
		}
	}

	tests := []struct {
		depth     int
		wantNodes int
	}{
		{depth: 1, wantNodes: 2},
		{depth: 2, wantNodes: 3},
		{depth: 3, wantNodes: 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("depth %d", tt.depth), func(t *testing.T) {
			sub, err := s.Neighbors(ctx, ids["a"], tt.depth)
			if err != nil {
				t.Fatalf("neighbors: %v", err)
			}
			if len(sub.Nodes) != tt.wantNodes {
				t.Errorf("expected %d nodes, got %d", tt.wantNodes, len(sub.Nodes))
			}
		})
	}

	if _, err := s.Neighbors(ctx, "missing", 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown entity, got %v", err)
	}
}

func TestCommunitySnapshotSwap(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := []common.Community{{ID: "c1", Name: "one", MemberDomains: []string{"dom-1"}}}
	if err := s.PublishCommunities(ctx, first); err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second := []common.Community{
		{ID: "c2", Name: "two", MemberDomains: []string{"dom-2"}},
		{ID: "c3", Name: "three", MemberDomains: []string{"dom-1", "dom-2"}},
	}
	if err := s.PublishCommunities(ctx, second); err != nil {
		t.Fatalf("publish second: %v", err)
	}

	all, err := s.Communities(ctx)
	if err != nil {
		t.Fatalf("communities: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected full replacement with 2 communities, got %d", len(all))
	}

	forDomain, err := s.CommunitiesForDomain(ctx, "dom-1")
	if err != nil {
		t.Fatalf("for domain: %v", err)
	}
	if len(forDomain) != 1 || forDomain[0].ID != "c3" {
		t.Errorf("expected [c3] for dom-1, got %v", forDomain)
	}
}

func TestSimilarDomains(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	embeddings := map[string][]float32{
		"dom-a": {1, 0, 0},
		"dom-b": {1, 0.1, 0},
		"dom-c": {0, 1, 0},
	}
	for id, emb := range embeddings {
		if err := s.SetDomainEmbedding(ctx, id, emb); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}

	got, err := s.SimilarDomains(ctx, "dom-a", 0.7)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(got) != 1 || got[0].DomainID != "dom-b" {
		t.Fatalf("expected [dom-b], got %v", got)
	}
	if got[0].Similarity <= 0.9 {
		t.Errorf("expected high similarity, got %v", got[0].Similarity)
	}
}

func TestKeyConcepts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	delta := store.DocumentDelta{DocumentID: "doc-1", DomainID: "dom-1"}
	add := func(name string, typ common.EntityType, times int) {
		for i := 0; i < times; i++ {
			_, occ, err := s.ResolveAndMerge(ctx, mention(name, typ, 0.9), "dom-1", "doc-1")
			if err != nil {
				t.Fatalf("resolve %s: %v", name, err)
			}
			delta.Occurrences = append(delta.Occurrences, occ)
		}
	}
	add("woo", common.EntityLaw, 3)
	add("zaakgericht werken", common.EntityConcept, 2)
	add("gemeente utrecht", common.EntityOrganization, 5)
	if err := s.ApplyDocument(ctx, delta); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.KeyConcepts(ctx, "dom-1", 10)
	if err != nil {
		t.Fatalf("key concepts: %v", err)
	}
	want := []string{"woo", "zaakgericht werken"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

func TestDomainMeta(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.DomainMeta(ctx, "dom-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	meta := common.DomainMeta{DomainID: "dom-1", Stakeholders: []string{"Provincie Utrecht"}}
	if err := s.UpsertDomainMeta(ctx, meta); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.DomainMeta(ctx, "dom-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DomainID != "dom-1" || len(got.Stakeholders) != 1 {
		t.Errorf("unexpected meta: %+v", got)
	}
}
