package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"
)

// DiscovererConfig tunes domain relation discovery. The zero value is
// usable.
type DiscovererConfig struct {
	// MinSharedEntities is the minimum overlap for the shared-entity signal.
	MinSharedEntities int

	// SemanticMinSimilarity is the cosine floor for the embedding signal.
	SemanticMinSimilarity float64

	// MaxSharedNames caps the shared entity names listed per relation.
	MaxSharedNames int
}

func (c DiscovererConfig) withDefaults() DiscovererConfig {
	if c.MinSharedEntities <= 0 {
		c.MinSharedEntities = 2
	}
	if c.SemanticMinSimilarity <= 0 {
		c.SemanticMinSimilarity = 0.7
	}
	if c.MaxSharedNames <= 0 {
		c.MaxSharedNames = 10
	}
	return c
}

// Discoverer combines weak signals into ranked domain relations. Discovery
// is a pure read path: it consumes the published community snapshot and the
// stored graph, never re-clustering inline.
type Discoverer struct {
	store store.GraphStore
	cfg   DiscovererConfig
}

func NewDiscoverer(s store.GraphStore, cfg DiscovererConfig) *Discoverer {
	return &Discoverer{store: s, cfg: cfg.withDefaults()}
}

type candidate struct {
	relation common.DomainRelation
	seq      int
}

// Discover evaluates the signals in a fixed order (shared entities,
// community membership, semantic similarity, temporal proximity,
// stakeholder overlap), keeps the strongest candidate per target domain,
// filters by minStrength and ranks descending. Ties keep signal evaluation
// order.
func (d *Discoverer) Discover(ctx context.Context, domainID string, minStrength float64) ([]common.DomainRelation, error) {
	var candidates []candidate
	seq := 0
	add := func(r common.DomainRelation) {
		if r.ToDomainID == domainID || r.ToDomainID == "" {
			return
		}
		candidates = append(candidates, candidate{relation: r, seq: seq})
		seq++
	}

	if err := d.sharedEntitySignal(ctx, domainID, add); err != nil {
		return nil, err
	}
	if err := d.communitySignal(ctx, domainID, add); err != nil {
		return nil, err
	}
	if err := d.semanticSignal(ctx, domainID, add); err != nil {
		return nil, err
	}
	if err := d.temporalSignal(ctx, domainID, add); err != nil {
		return nil, err
	}
	if err := d.stakeholderSignal(ctx, domainID, add); err != nil {
		return nil, err
	}

	// Per target domain the strongest candidate wins outright; on equal
	// strength the earlier signal keeps the slot.
	best := make(map[string]candidate)
	for _, c := range candidates {
		existing, ok := best[c.relation.ToDomainID]
		if !ok || c.relation.Strength > existing.relation.Strength {
			best[c.relation.ToDomainID] = c
		}
	}

	out := make([]common.DomainRelation, 0, len(best))
	ordered := make([]candidate, 0, len(best))
	for _, c := range best {
		if c.relation.Strength < minStrength {
			continue
		}
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].relation.Strength != ordered[j].relation.Strength {
			return ordered[i].relation.Strength > ordered[j].relation.Strength
		}
		return ordered[i].seq < ordered[j].seq
	})
	for _, c := range ordered {
		out = append(out, c.relation)
	}
	return out, nil
}

func (d *Discoverer) sharedEntitySignal(ctx context.Context, domainID string, add func(common.DomainRelation)) error {
	overlaps, err := d.store.DomainEntityOverlaps(ctx, domainID)
	if err != nil {
		return fmt.Errorf("shared entity signal: %w", err)
	}
	for _, o := range overlaps {
		if len(o.SharedNames) < d.cfg.MinSharedEntities {
			continue
		}
		smaller := min(o.DomainSize, o.OtherSize)
		if smaller == 0 {
			continue
		}
		strength := float64(len(o.SharedNames)) / float64(smaller)
		if strength > 1 {
			strength = 1
		}
		shared := o.SharedNames
		if len(shared) > d.cfg.MaxSharedNames {
			shared = shared[:d.cfg.MaxSharedNames]
		}
		add(common.DomainRelation{
			FromDomainID:   domainID,
			ToDomainID:     o.DomainID,
			Reason:         common.ReasonSharedEntities,
			Strength:       strength,
			SharedEntities: shared,
			Explanation: fmt.Sprintf("%d shared entities, including %s",
				len(o.SharedNames), strings.Join(shared[:min(3, len(shared))], ", ")),
		})
	}
	return nil
}

func (d *Discoverer) communitySignal(ctx context.Context, domainID string, add func(common.DomainRelation)) error {
	communities, err := d.store.CommunitiesForDomain(ctx, domainID)
	if err != nil {
		return fmt.Errorf("community signal: %w", err)
	}
	for _, c := range communities {
		for _, other := range c.MemberDomains {
			if other == domainID {
				continue
			}
			add(common.DomainRelation{
				FromDomainID: domainID,
				ToDomainID:   other,
				Reason:       common.ReasonCommunity,
				Strength:     c.CoherenceScore,
				Explanation:  fmt.Sprintf("both domains belong to community %q", c.Name),
			})
		}
	}
	return nil
}

func (d *Discoverer) semanticSignal(ctx context.Context, domainID string, add func(common.DomainRelation)) error {
	similar, err := d.store.SimilarDomains(ctx, domainID, d.cfg.SemanticMinSimilarity)
	if err != nil {
		return fmt.Errorf("semantic signal: %w", err)
	}
	for _, s := range similar {
		add(common.DomainRelation{
			FromDomainID: domainID,
			ToDomainID:   s.DomainID,
			Reason:       common.ReasonSemanticSimilarity,
			Strength:     s.Similarity,
			Explanation:  fmt.Sprintf("domain embeddings are %.0f%% similar", s.Similarity*100),
		})
	}
	return nil
}

func (d *Discoverer) temporalSignal(ctx context.Context, domainID string, add func(common.DomainRelation)) error {
	ref, err := d.store.DomainMeta(ctx, domainID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("temporal signal: %w", err)
	}
	if ref.PeriodStart.IsZero() || ref.PeriodEnd.IsZero() {
		return nil
	}

	metas, err := d.store.DomainMetas(ctx)
	if err != nil {
		return fmt.Errorf("temporal signal: %w", err)
	}
	for _, m := range metas {
		if m.DomainID == domainID || m.PeriodStart.IsZero() || m.PeriodEnd.IsZero() {
			continue
		}
		ratio := periodOverlap(ref, m)
		if ratio <= 0 {
			continue
		}
		add(common.DomainRelation{
			FromDomainID: domainID,
			ToDomainID:   m.DomainID,
			Reason:       common.ReasonTemporalProximity,
			Strength:     ratio,
			Explanation:  fmt.Sprintf("active periods overlap for %.0f%% of the shorter period", ratio*100),
		})
	}
	return nil
}

// periodOverlap is the overlap duration divided by the shorter of the two
// periods, in [0,1].
func periodOverlap(a, b common.DomainMeta) float64 {
	start := a.PeriodStart
	if b.PeriodStart.After(start) {
		start = b.PeriodStart
	}
	end := a.PeriodEnd
	if b.PeriodEnd.Before(end) {
		end = b.PeriodEnd
	}
	if !end.After(start) {
		return 0
	}
	overlap := end.Sub(start)
	shorter := a.PeriodEnd.Sub(a.PeriodStart)
	if d := b.PeriodEnd.Sub(b.PeriodStart); d < shorter {
		shorter = d
	}
	if shorter <= 0 {
		return 0
	}
	ratio := float64(overlap) / float64(shorter)
	if ratio > 1 {
		return 1
	}
	return ratio
}

func (d *Discoverer) stakeholderSignal(ctx context.Context, domainID string, add func(common.DomainRelation)) error {
	ref, err := d.store.DomainMeta(ctx, domainID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stakeholder signal: %w", err)
	}
	if len(ref.Stakeholders) == 0 {
		return nil
	}
	refSet := make(map[string]struct{}, len(ref.Stakeholders))
	for _, s := range ref.Stakeholders {
		refSet[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	metas, err := d.store.DomainMetas(ctx)
	if err != nil {
		return fmt.Errorf("stakeholder signal: %w", err)
	}
	for _, m := range metas {
		if m.DomainID == domainID || len(m.Stakeholders) == 0 {
			continue
		}
		var shared int
		seen := make(map[string]struct{}, len(m.Stakeholders))
		for _, s := range m.Stakeholders {
			key := strings.ToLower(strings.TrimSpace(s))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, ok := refSet[key]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		smaller := min(len(refSet), len(seen))
		strength := float64(shared) / float64(smaller)
		if strength > 1 {
			strength = 1
		}
		add(common.DomainRelation{
			FromDomainID: domainID,
			ToDomainID:   m.DomainID,
			Reason:       common.ReasonStakeholderOverlap,
			Strength:     strength,
			Explanation:  fmt.Sprintf("%d shared stakeholder(s)", shared),
		})
	}
	return nil
}

// DomainGraphContext aggregates everything the graph knows about one
// domain.
type DomainGraphContext struct {
	DomainID       string                  `json:"domain_id"`
	Entities       []common.Entity         `json:"entities"`
	RelatedDomains []common.DomainRelation `json:"related_domains"`
	Communities    []common.Community      `json:"communities"`
	KeyConcepts    []string                `json:"key_concepts"`
	Summary        string                  `json:"summary"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

// GetDomainGraphContext assembles the domain's entities, related domains,
// communities and key concepts plus a one-paragraph textual summary.
func (d *Discoverer) GetDomainGraphContext(ctx context.Context, domainID string) (DomainGraphContext, error) {
	entities, err := d.store.EntitiesForDomain(ctx, domainID)
	if err != nil {
		return DomainGraphContext{}, fmt.Errorf("domain context: %w", err)
	}
	related, err := d.Discover(ctx, domainID, 0.3)
	if err != nil {
		return DomainGraphContext{}, err
	}
	communities, err := d.store.CommunitiesForDomain(ctx, domainID)
	if err != nil {
		return DomainGraphContext{}, fmt.Errorf("domain context: %w", err)
	}
	concepts, err := d.store.KeyConcepts(ctx, domainID, 10)
	if err != nil {
		return DomainGraphContext{}, fmt.Errorf("domain context: %w", err)
	}

	out := DomainGraphContext{
		DomainID:       domainID,
		Entities:       entities,
		RelatedDomains: related,
		Communities:    communities,
		KeyConcepts:    concepts,
		GeneratedAt:    time.Now().UTC(),
	}
	out.Summary = graphSummary(out)
	return out, nil
}

func graphSummary(c DomainGraphContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The domain references %d entities", len(c.Entities))
	if len(c.Communities) > 0 {
		fmt.Fprintf(&b, " across %d thematic communities", len(c.Communities))
	}
	b.WriteString(".")
	if len(c.RelatedDomains) > 0 {
		top := c.RelatedDomains[0]
		fmt.Fprintf(&b, " Strongest related domain: %s (%.2f, %s).",
			top.ToDomainID, top.Strength, top.Reason)
	}
	if len(c.KeyConcepts) > 0 {
		fmt.Fprintf(&b, " Key concepts: %s.",
			strings.Join(c.KeyConcepts[:min(5, len(c.KeyConcepts))], ", "))
	}
	return b.String()
}

// GetEntityNetwork returns the bounded neighborhood of an entity for
// visualization.
func (d *Discoverer) GetEntityNetwork(ctx context.Context, entityID string, maxDepth int) (store.Subgraph, error) {
	return d.store.Neighbors(ctx, entityID, maxDepth)
}
