// Package graph holds the knowledge-graph core: relationship inference,
// community detection, domain relation discovery and the per-document
// processing pipeline.
package graph

import (
	"math"
	"sort"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/store"
)

const defaultWindow = 100

// TypePair is a directed entity-type pair used as a key in the relation
// type table.
type TypePair struct {
	Source common.EntityType
	Target common.EntityType
}

// InferencerConfig tunes co-occurrence inference. The zero value is usable;
// missing fields fall back to the defaults.
type InferencerConfig struct {
	// Window is the co-occurrence distance in characters. Mentions at
	// distance >= Window produce no edge.
	Window int

	// RelationTypes maps directed type pairs to edge types. Pairs are looked
	// up in both orientations; a reversed hit swaps source and target.
	RelationTypes map[TypePair]common.RelationshipType

	// SameType is the edge type for two entities of the same type.
	SameType common.RelationshipType

	// Fallback is the edge type when no table entry matches.
	Fallback common.RelationshipType
}

// DefaultRelationTypes returns the baseline type-pair table.
func DefaultRelationTypes() map[TypePair]common.RelationshipType {
	return map[TypePair]common.RelationshipType{
		{common.EntityPerson, common.EntityOrganization}:       common.RelationWorksFor,
		{common.EntityOrganization, common.EntityLocation}:     common.RelationLocatedIn,
		{common.EntityOrganization, common.EntityLaw}:          common.RelationSubjectTo,
		{common.EntityConcept, common.EntityOrganization}:      common.RelationManagedBy,
	}
}

func (c InferencerConfig) withDefaults() InferencerConfig {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.RelationTypes == nil {
		c.RelationTypes = DefaultRelationTypes()
	}
	if c.SameType == "" {
		c.SameType = common.RelationRelatedTo
	}
	if c.Fallback == "" {
		c.Fallback = common.RelationMentions
	}
	return c
}

// Inferencer derives typed, weighted edges from the resolved mentions of a
// single document.
type Inferencer struct {
	cfg InferencerConfig
}

func NewInferencer(cfg InferencerConfig) *Inferencer {
	return &Inferencer{cfg: cfg.withDefaults()}
}

// Infer pairs every two mentions closer than the window and emits one edge
// observation per pair with strength 1 - distance/window. Mentions that
// resolved to the same entity never pair with themselves.
func (inf *Inferencer) Infer(mentions []common.Mention) []store.EdgeObservation {
	sorted := make([]common.Mention, 0, len(mentions))
	for _, m := range mentions {
		if m.EntityID == "" {
			continue
		}
		sorted = append(sorted, m)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	window := float64(inf.cfg.Window)
	var out []store.EdgeObservation
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.EntityID == b.EntityID {
				continue
			}
			d := math.Abs(float64(b.Offset - a.Offset))
			if d >= window {
				// sorted by offset, so later mentions are farther still
				break
			}
			strength := 1 - d/window
			if strength < 0 {
				strength = 0
			} else if strength > 1 {
				strength = 1
			}

			source, target, relType := inf.orient(a, b)
			out = append(out, store.EdgeObservation{
				SourceID: source,
				TargetID: target,
				Type:     relType,
				Strength: strength,
				Evidence: evidenceFor(a, b),
			})
		}
	}
	return out
}

// orient resolves the edge type and direction for a mention pair in
// document order.
func (inf *Inferencer) orient(a, b common.Mention) (string, string, common.RelationshipType) {
	if a.Type == b.Type {
		return a.EntityID, b.EntityID, inf.cfg.SameType
	}
	if t, ok := inf.cfg.RelationTypes[TypePair{a.Type, b.Type}]; ok {
		return a.EntityID, b.EntityID, t
	}
	if t, ok := inf.cfg.RelationTypes[TypePair{b.Type, a.Type}]; ok {
		return b.EntityID, a.EntityID, t
	}
	return a.EntityID, b.EntityID, inf.cfg.Fallback
}

func evidenceFor(a, b common.Mention) []string {
	if a.Context != "" {
		return []string{a.Context}
	}
	if b.Context != "" {
		return []string{b.Context}
	}
	return nil
}
