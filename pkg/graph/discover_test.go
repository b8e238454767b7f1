package graph

import (
	"context"
	"testing"
	"time"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"
	"github.com/iou-concept/kompas/pkg/store/memory"
)

// ingest commits one synthetic document containing the given canonical
// names as CONCEPT entities.
func ingest(t *testing.T, s *memory.Store, domainID, documentID string, names []string) {
	t.Helper()
	ctx := context.Background()
	delta := store.DocumentDelta{DocumentID: documentID, DomainID: domainID}
	for i, name := range names {
		m := common.Mention{
			Type:       common.EntityConcept,
			Surface:    name,
			Canonical:  name,
			Confidence: 0.9,
			Offset:     i * 200,
		}
		_, occ, err := s.ResolveAndMerge(ctx, m, domainID, documentID)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		delta.Occurrences = append(delta.Occurrences, occ)
	}
	if err := s.ApplyDocument(ctx, delta); err != nil {
		t.Fatalf("apply %s: %v", documentID, err)
	}
}

func TestDiscoverSharedEntities(t *testing.T) {
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem", "metadata"})
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "archiefwet", "subsidie"})

	d := NewDiscoverer(s, DiscovererConfig{})
	got, err := d.Discover(context.Background(), "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(got))
	}
	r := got[0]
	if r.ToDomainID != "dom-b" || r.Reason != common.ReasonSharedEntities {
		t.Errorf("unexpected relation: %+v", r)
	}
	// 2 shared out of min(4, 3)
	if !almostEqual(r.Strength, 2.0/3.0) {
		t.Errorf("expected strength 2/3, got %v", r.Strength)
	}
	if len(r.SharedEntities) != 2 {
		t.Errorf("expected 2 shared entities, got %v", r.SharedEntities)
	}
}

func TestDiscoverMinSharedEntities(t *testing.T) {
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "zaaksysteem"})
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "subsidie"})

	d := NewDiscoverer(s, DiscovererConfig{})
	got, err := d.Discover(context.Background(), "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("one shared entity must not relate domains, got %v", got)
	}
}

func TestDiscoverMinStrengthFilter(t *testing.T) {
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem", "metadata"})
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "archiefwet", "subsidie"})

	d := NewDiscoverer(s, DiscovererConfig{})
	got, err := d.Discover(context.Background(), "dom-a", 0.9)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected relations below threshold to be filtered, got %v", got)
	}
}

func TestDiscoverDedupeKeepsStrongest(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem", "metadata"})
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "archiefwet", "subsidie"})

	// weaker community signal for the same pair
	err := s.PublishCommunities(ctx, []common.Community{{
		ID:             "c1",
		Name:           "archief",
		MemberDomains:  []string{"dom-a", "dom-b"},
		CoherenceScore: 0.4,
	}})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	d := NewDiscoverer(s, DiscovererConfig{})
	got, err := d.Discover(ctx, "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 deduplicated relation, got %d", len(got))
	}
	if got[0].Reason != common.ReasonSharedEntities {
		t.Errorf("expected the stronger shared-entity reason to win, got %s", got[0].Reason)
	}
	if !almostEqual(got[0].Strength, 2.0/3.0) {
		t.Errorf("expected strength 2/3, got %v", got[0].Strength)
	}
}

func TestDiscoverEqualStrengthKeepsEarlierSignal(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem"})
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "archiefwet", "subsidie"})

	// community signal with exactly the same strength as 2/min(3,3)
	err := s.PublishCommunities(ctx, []common.Community{{
		ID:             "c1",
		Name:           "archief",
		MemberDomains:  []string{"dom-a", "dom-b"},
		CoherenceScore: 2.0 / 3.0,
	}})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	d := NewDiscoverer(s, DiscovererConfig{})
	got, err := d.Discover(ctx, "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(got))
	}
	if got[0].Reason != common.ReasonSharedEntities {
		t.Errorf("tie must keep the earlier signal, got %s", got[0].Reason)
	}
}

func TestDiscoverNoSelfRelations(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet"})

	err := s.PublishCommunities(ctx, []common.Community{{
		ID:             "c1",
		MemberDomains:  []string{"dom-a"},
		CoherenceScore: 0.9,
	}})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := NewDiscoverer(s, DiscovererConfig{}).Discover(ctx, "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	for _, r := range got {
		if r.ToDomainID == "dom-a" {
			t.Errorf("self relation returned: %+v", r)
		}
	}
}

func TestDiscoverTemporalSignal(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	day := 24 * time.Hour
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	metas := []common.DomainMeta{
		{DomainID: "dom-a", PeriodStart: base, PeriodEnd: base.Add(100 * day)},
		// overlaps the last 50 days of dom-a's 100-day period
		{DomainID: "dom-b", PeriodStart: base.Add(50 * day), PeriodEnd: base.Add(150 * day)},
		// no overlap
		{DomainID: "dom-c", PeriodStart: base.Add(200 * day), PeriodEnd: base.Add(300 * day)},
	}
	for _, m := range metas {
		if err := s.UpsertDomainMeta(ctx, m); err != nil {
			t.Fatalf("meta %s: %v", m.DomainID, err)
		}
	}

	got, err := NewDiscoverer(s, DiscovererConfig{}).Discover(ctx, "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 temporal relation, got %d", len(got))
	}
	if got[0].ToDomainID != "dom-b" || got[0].Reason != common.ReasonTemporalProximity {
		t.Errorf("unexpected relation: %+v", got[0])
	}
	if !almostEqual(got[0].Strength, 0.5) {
		t.Errorf("expected overlap ratio 0.5, got %v", got[0].Strength)
	}
}

func TestDiscoverStakeholderSignal(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	metas := []common.DomainMeta{
		{DomainID: "dom-a", Stakeholders: []string{"Provincie Utrecht", "Waterschap AGV"}},
		{DomainID: "dom-b", Stakeholders: []string{"provincie utrecht", "Gemeente Amersfoort"}},
	}
	for _, m := range metas {
		if err := s.UpsertDomainMeta(ctx, m); err != nil {
			t.Fatalf("meta %s: %v", m.DomainID, err)
		}
	}

	got, err := NewDiscoverer(s, DiscovererConfig{}).Discover(ctx, "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stakeholder relation, got %d", len(got))
	}
	if got[0].Reason != common.ReasonStakeholderOverlap {
		t.Errorf("expected stakeholder overlap, got %s", got[0].Reason)
	}
	if !almostEqual(got[0].Strength, 0.5) {
		t.Errorf("expected overlap 1/2, got %v", got[0].Strength)
	}
}

func TestDiscoverSortedByStrength(t *testing.T) {
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem", "metadata"})
	// 2/3 against dom-b, 2/4 against dom-c
	ingest(t, s, "dom-b", "doc-b", []string{"woo", "archiefwet", "subsidie"})
	ingest(t, s, "dom-c", "doc-c", []string{"woo", "archiefwet", "subsidie2", "subsidie3"})

	got, err := NewDiscoverer(s, DiscovererConfig{}).Discover(context.Background(), "dom-a", 0.0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 relations, got %d", len(got))
	}
	if got[0].ToDomainID != "dom-b" || got[1].ToDomainID != "dom-c" {
		t.Errorf("expected dom-b before dom-c, got %s then %s", got[0].ToDomainID, got[1].ToDomainID)
	}
}

func TestGetDomainGraphContext(t *testing.T) {
	s := memory.NewStore()
	ingest(t, s, "dom-a", "doc-a", []string{"woo", "archiefwet", "zaaksysteem"})

	got, err := NewDiscoverer(s, DiscovererConfig{}).GetDomainGraphContext(context.Background(), "dom-a")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(got.Entities) != 3 {
		t.Errorf("expected 3 entities, got %d", len(got.Entities))
	}
	if len(got.KeyConcepts) != 3 {
		t.Errorf("expected 3 key concepts, got %v", got.KeyConcepts)
	}
	if got.Summary == "" {
		t.Error("expected a generated summary")
	}
}
