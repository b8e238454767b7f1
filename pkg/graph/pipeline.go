package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iou-concept/kompas/internal/util"
	"github.com/iou-concept/kompas/pkg/ai"
	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/extract"
	"github.com/iou-concept/kompas/pkg/logger"
	"github.com/iou-concept/kompas/pkg/store"
)

// ProcessResult reports what one document contributed to the graph.
type ProcessResult struct {
	DocumentID              string `json:"document_id"`
	DomainID                string `json:"domain_id"`
	EntitiesExtracted       int    `json:"entities_extracted"`
	RelationshipsDiscovered int    `json:"relationships_discovered"`
	ProcessingTimeMs        int64  `json:"processing_time_ms"`
	Degraded                bool   `json:"degraded"`
	FailureReason           string `json:"failure_reason,omitempty"`
}

// PipelineConfig tunes the per-document pipeline.
type PipelineConfig struct {
	// ExtractRetries bounds extraction attempts before the document is
	// reported degraded.
	ExtractRetries int

	// RefreshEmbeddings regenerates the domain embedding after a commit
	// when an AI client is available.
	RefreshEmbeddings bool
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.ExtractRetries <= 0 {
		c.ExtractRetries = 3
	}
	return c
}

// Pipeline runs a document through extraction, resolution, inference and
// the atomic graph commit. It never triggers community detection; that runs
// as a separate batch job.
type Pipeline struct {
	store      store.GraphStore
	extractor  extract.Extractor
	inferencer *Inferencer
	aiClient   ai.GraphAIClient
	cfg        PipelineConfig
}

// NewPipeline wires a pipeline. aiClient may be nil; the embedding refresh
// is then skipped.
func NewPipeline(
	s store.GraphStore,
	extractor extract.Extractor,
	inferencer *Inferencer,
	aiClient ai.GraphAIClient,
	cfg PipelineConfig,
) *Pipeline {
	return &Pipeline{
		store:      s,
		extractor:  extractor,
		inferencer: inferencer,
		aiClient:   aiClient,
		cfg:        cfg.withDefaults(),
	}
}

// ProcessDocument ingests one document. Extraction failures are retried and
// then reported as a degraded result rather than an error, so one bad
// document never poisons a batch. Store failures are returned as errors.
// The graph commit is atomic; cancellation is honored up to that boundary.
func (p *Pipeline) ProcessDocument(
	ctx context.Context,
	documentID string,
	content string,
	domainID string,
) (ProcessResult, error) {
	started := time.Now()
	result := ProcessResult{DocumentID: documentID, DomainID: domainID}
	finish := func() ProcessResult {
		result.ProcessingTimeMs = time.Since(started).Milliseconds()
		return result
	}

	mentions, err := util.RetryWithContext(ctx, p.cfg.ExtractRetries,
		func(ctx context.Context) ([]common.Mention, error) {
			return p.extractor.Extract(ctx, content, documentID)
		})
	if err != nil {
		if ctx.Err() != nil {
			return finish(), ctx.Err()
		}
		logger.Warn("[Graph] Extraction failed, reporting degraded result",
			"documentId", documentID, "error", err)
		result.Degraded = true
		result.FailureReason = fmt.Sprintf("extraction failed: %v", err)
		return finish(), nil
	}

	result.EntitiesExtracted = len(mentions)
	if len(mentions) == 0 {
		return finish(), nil
	}

	delta := store.DocumentDelta{DocumentID: documentID, DomainID: domainID}
	resolved := make([]common.Mention, 0, len(mentions))
	for _, m := range mentions {
		entityID, occ, err := p.store.ResolveAndMerge(ctx, m, domainID, documentID)
		if err != nil {
			return finish(), fmt.Errorf("resolve mention %q: %w", m.Canonical, err)
		}
		m.EntityID = entityID
		resolved = append(resolved, m)
		delta.Occurrences = append(delta.Occurrences, occ)
	}

	delta.Edges = p.inferencer.Infer(resolved)
	result.RelationshipsDiscovered = len(delta.Edges)

	if err := ctx.Err(); err != nil {
		return finish(), err
	}
	if err := p.store.ApplyDocument(ctx, delta); err != nil {
		return finish(), fmt.Errorf("commit document %s: %w", documentID, err)
	}

	if p.cfg.RefreshEmbeddings && p.aiClient != nil {
		if err := p.refreshDomainEmbedding(ctx, domainID); err != nil {
			logger.Warn("[Graph] Domain embedding refresh failed",
				"domainId", domainID, "error", err)
		}
	}

	logger.Info("[Graph] Document processed",
		"documentId", documentID,
		"domainId", domainID,
		"entities", result.EntitiesExtracted,
		"relationships", result.RelationshipsDiscovered,
	)
	return finish(), nil
}

// refreshDomainEmbedding re-embeds the domain from its canonical entity
// names. Best effort; the graph commit has already happened.
func (p *Pipeline) refreshDomainEmbedding(ctx context.Context, domainID string) error {
	entities, err := p.store.EntitiesForDomain(ctx, domainID)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.CanonicalName)
	}
	sort.Strings(names)

	embedding, err := p.aiClient.GenerateEmbedding(ctx, []byte(strings.Join(names, "\n")))
	if err != nil {
		return err
	}
	return p.store.SetDomainEmbedding(ctx, domainID, embedding)
}
