package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/logger"
	"github.com/iou-concept/kompas/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DetectorConfig tunes community detection. The zero value is usable.
type DetectorConfig struct {
	// Timeout bounds one detection run. On expiry the run aborts and the
	// previously published snapshot stays in place.
	Timeout time.Duration

	// MaxThemes caps the key themes listed per community.
	MaxThemes int
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.MaxThemes <= 0 {
		c.MaxThemes = 5
	}
	return c
}

// Detector recomputes the community view of the graph. Each run works on a
// snapshot and fully replaces the previously published set.
type Detector struct {
	store store.GraphStore
	cfg   DetectorConfig
}

func NewDetector(s store.GraphStore, cfg DetectorConfig) *Detector {
	return &Detector{store: s, cfg: cfg.withDefaults()}
}

// Run snapshots the graph, partitions it and publishes the result. A graph
// with fewer than two entities publishes an empty set.
func (d *Detector) Run(ctx context.Context) ([]common.Community, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	started := time.Now()
	snap, err := d.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot graph: %w", err)
	}

	communities, err := Detect(ctx, snap, d.cfg)
	if err != nil {
		return nil, err
	}

	if err := d.store.PublishCommunities(ctx, communities); err != nil {
		return nil, fmt.Errorf("publish communities: %w", err)
	}

	logger.Info("[Graph] Community detection finished",
		"entities", len(snap.Entities),
		"communities", len(communities),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return communities, nil
}

// Detect partitions the snapshot with greedy modularity optimization and
// derives names, themes and coherence scores for the resulting clusters.
func Detect(ctx context.Context, snap store.GraphSnapshot, cfg DetectorConfig) ([]common.Community, error) {
	cfg = cfg.withDefaults()
	if len(snap.Entities) < 2 {
		return []common.Community{}, nil
	}

	index := make(map[string]int, len(snap.Entities))
	for i, e := range snap.Entities {
		index[e.ID] = i
	}
	n := len(snap.Entities)

	// Parallel edges between the same node pair aggregate their strengths.
	adjacency := make([]map[int]float64, n)
	for i := range adjacency {
		adjacency[i] = make(map[int]float64)
	}
	for _, e := range snap.Edges {
		a, okA := index[e.SourceID]
		b, okB := index[e.TargetID]
		if !okA || !okB || a == b {
			continue
		}
		adjacency[a][b] += e.Strength
		adjacency[b][a] += e.Strength
	}

	assignment, err := partition(ctx, adjacency)
	if err != nil {
		return nil, err
	}

	groups := make(map[int][]int)
	for node, comm := range assignment {
		groups[comm] = append(groups[comm], node)
	}

	var communities []common.Community
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		c, err := summarize(snap, adjacency, members, cfg)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	sort.Slice(communities, func(i, j int) bool {
		if communities[i].CoherenceScore != communities[j].CoherenceScore {
			return communities[i].CoherenceScore > communities[j].CoherenceScore
		}
		return communities[i].Name < communities[j].Name
	})
	if communities == nil {
		communities = []common.Community{}
	}
	return communities, nil
}

// partition runs single-level greedy modularity optimization: every node
// starts in its own community and moves to the neighboring community with
// the highest positive modularity gain until a full pass makes no move.
func partition(ctx context.Context, adjacency []map[int]float64) ([]int, error) {
	n := len(adjacency)
	assignment := make([]int, n)
	degree := make([]float64, n)
	var total float64
	for i := range adjacency {
		assignment[i] = i
		for _, w := range adjacency[i] {
			degree[i] += w
			total += w
		}
	}
	// total counted each edge twice; 2m in modularity terms
	if total == 0 {
		return assignment, nil
	}

	commDegree := make([]float64, n)
	copy(commDegree, degree)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("community detection aborted: %w", err)
		}

		moved := false
		for node := 0; node < n; node++ {
			current := assignment[node]

			weightTo := make(map[int]float64)
			for neighbor, w := range adjacency[node] {
				weightTo[assignment[neighbor]] += w
			}

			commDegree[current] -= degree[node]

			best := current
			bestGain := weightTo[current]/total - degree[node]*commDegree[current]/(total*total)
			for comm, w := range weightTo {
				if comm == current {
					continue
				}
				gain := w/total - degree[node]*commDegree[comm]/(total*total)
				if gain > bestGain {
					best = comm
					bestGain = gain
				}
			}

			commDegree[best] += degree[node]
			if best != current {
				assignment[node] = best
				moved = true
			}
		}
		if !moved {
			return assignment, nil
		}
	}
}

// summarize derives the presentation fields of one community: a name and
// themes from the highest-degree member entities, the owning domains, and a
// coherence score from the internal edge density.
func summarize(
	snap store.GraphSnapshot,
	adjacency []map[int]float64,
	members []int,
	cfg DetectorConfig,
) (common.Community, error) {
	id, err := gonanoid.New()
	if err != nil {
		return common.Community{}, err
	}

	inCommunity := make(map[int]struct{}, len(members))
	for _, m := range members {
		inCommunity[m] = struct{}{}
	}

	type ranked struct {
		node   int
		weight float64
	}
	rankedMembers := make([]ranked, 0, len(members))
	var internal float64
	for _, m := range members {
		var w float64
		for neighbor, weight := range adjacency[m] {
			if _, ok := inCommunity[neighbor]; ok {
				w += weight
				internal += weight
			}
		}
		rankedMembers = append(rankedMembers, ranked{node: m, weight: w})
	}
	internal /= 2

	sort.Slice(rankedMembers, func(i, j int) bool {
		if rankedMembers[i].weight != rankedMembers[j].weight {
			return rankedMembers[i].weight > rankedMembers[j].weight
		}
		return snap.Entities[rankedMembers[i].node].CanonicalName < snap.Entities[rankedMembers[j].node].CanonicalName
	})

	themes := make([]string, 0, cfg.MaxThemes)
	for _, r := range rankedMembers {
		if len(themes) >= cfg.MaxThemes {
			break
		}
		themes = append(themes, snap.Entities[r.node].CanonicalName)
	}

	entityIDs := make([]string, 0, len(members))
	domainSet := make(map[string]struct{})
	for _, m := range members {
		e := snap.Entities[m]
		entityIDs = append(entityIDs, e.ID)
		for _, d := range snap.EntityDomains[e.ID] {
			domainSet[d] = struct{}{}
		}
	}
	sort.Strings(entityIDs)
	domains := make([]string, 0, len(domainSet))
	for d := range domainSet {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	// Average internal strength over all member pairs, clamped to [0,1].
	pairs := float64(len(members)*(len(members)-1)) / 2
	coherence := internal / pairs
	if coherence > 1 {
		coherence = 1
	}

	name := strings.Join(themes, ", ")
	summary := fmt.Sprintf(
		"Cluster of %d entities around %s, spanning %d domain(s).",
		len(members), name, len(domains),
	)

	return common.Community{
		ID:             id,
		Name:           name,
		Summary:        summary,
		KeyThemes:      themes,
		MemberDomains:  domains,
		EntityIDs:      entityIDs,
		CoherenceScore: coherence,
	}, nil
}
