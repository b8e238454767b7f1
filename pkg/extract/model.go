package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iou-concept/kompas/pkg/ai"
	"github.com/iou-concept/kompas/pkg/common"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"
)

type modelEntity struct {
	EntityName string  `json:"entity_name" jsonschema_description:"Surface form of the entity exactly as it appears in the text"`
	EntityType string  `json:"entity_type" jsonschema_description:"One of: PERSON, ORGANIZATION, LOCATION, CONCEPT, EVENT, LAW"`
	Confidence float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1"`
}

type modelResponse struct {
	Entities []modelEntity `json:"entities" jsonschema_description:"Entities identified in the text"`
}

var validEntityTypes = map[common.EntityType]bool{
	common.EntityPerson:       true,
	common.EntityOrganization: true,
	common.EntityLocation:     true,
	common.EntityConcept:      true,
	common.EntityEvent:        true,
	common.EntityLaw:          true,
}

// ModelExtractor is the statistical extraction strategy: it sends
// token-bounded chunks of the document to an AI provider and asks for
// structured entity output. Provider calls carry a timeout; a failed call
// fails the whole extraction, which the orchestrator treats as a
// recoverable per-document condition.
type ModelExtractor struct {
	client           ai.GraphAIClient
	encoder          string
	maxTokens        int
	timeout          time.Duration
	parallelRequests int
}

// NewModelExtractorParams configures a ModelExtractor.
type NewModelExtractorParams struct {
	Client           ai.GraphAIClient
	TokenEncoder     string
	MaxChunkTokens   int
	RequestTimeout   time.Duration
	ParallelRequests int
}

// NewModelExtractor creates a model-backed extractor. Zero values fall back
// to the o200k_base encoder, 500-token chunks, a 2 minute request timeout,
// and 4 parallel requests.
func NewModelExtractor(params NewModelExtractorParams) *ModelExtractor {
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	maxTokens := params.MaxChunkTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	parallel := params.ParallelRequests
	if parallel <= 0 {
		parallel = 4
	}
	return &ModelExtractor{
		client:           params.Client,
		encoder:          encoder,
		maxTokens:        maxTokens,
		timeout:          timeout,
		parallelRequests: parallel,
	}
}

// Extract chunks the text, extracts entities per chunk concurrently, and
// re-anchors every reported surface form to its character offsets in the
// original text so that multiplicity is preserved.
func (e *ModelExtractor) Extract(ctx context.Context, text string, documentID string) ([]common.Mention, error) {
	if strings.TrimSpace(text) == "" {
		return []common.Mention{}, nil
	}

	chunks, err := chunkText(text, e.encoder, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document text: %w", err)
	}

	mentions := make([]common.Mention, 0)
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelRequests)
	for _, chunk := range chunks {
		c := chunk
		g.Go(func() error {
			res, err := e.extractChunk(gCtx, c.text)
			if err != nil {
				return err
			}
			found := anchorMentions(text, c, res)
			mu.Lock()
			mentions = append(mentions, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Offset < mentions[j].Offset
	})
	return mentions, nil
}

func (e *ModelExtractor) extractChunk(ctx context.Context, text string) (*modelResponse, error) {
	rCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res modelResponse
	err := e.client.GenerateCompletionWithFormat(
		rCtx,
		"extract_entities",
		"Extract typed entity mentions from a document fragment.",
		text,
		&res,
		ai.WithSystemPrompts(ai.ExtractPrompt),
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// anchorMentions maps each reported entity back onto every occurrence of its
// surface form within the chunk. Entities whose surface cannot be located or
// whose type is unknown are dropped.
func anchorMentions(fullText string, chunk textChunk, res *modelResponse) []common.Mention {
	mentions := make([]common.Mention, 0, len(res.Entities))
	for _, ent := range res.Entities {
		etype := common.EntityType(strings.ToUpper(strings.TrimSpace(ent.EntityType)))
		if !validEntityTypes[etype] {
			continue
		}
		surface := strings.TrimSpace(ent.EntityName)
		if surface == "" {
			continue
		}
		confidence := ent.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}

		searchFrom := 0
		for {
			idx := strings.Index(chunk.text[searchFrom:], surface)
			if idx < 0 {
				break
			}
			start := chunk.start + searchFrom + idx
			end := start + len(surface)
			mentions = append(mentions, common.Mention{
				Type:       etype,
				Surface:    surface,
				Canonical:  Canonicalize(surface),
				Confidence: confidence,
				Context:    contextWindow(fullText, start, end),
				Offset:     start,
			})
			searchFrom += idx + len(surface)
		}
	}
	return mentions
}

type textChunk struct {
	start int
	text  string
}

// chunkText splits text into token-bounded chunks on paragraph boundaries,
// keeping the byte offset of each chunk so mention positions stay absolute.
// A single paragraph over the budget is hard-split by bytes.
func chunkText(text string, encoder string, maxTokens int) ([]textChunk, error) {
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	type paragraph struct {
		start int
		text  string
	}

	paragraphs := make([]paragraph, 0)
	offset := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, paragraph{start: offset, text: p})
		}
		offset += len(p) + 2
	}

	chunks := make([]textChunk, 0)
	chunkStart := -1
	chunkEnd := -1
	currentTokens := 0

	flush := func() {
		if chunkStart < 0 {
			return
		}
		chunks = append(chunks, textChunk{start: chunkStart, text: text[chunkStart:chunkEnd]})
		chunkStart = -1
		currentTokens = 0
	}

	for _, p := range paragraphs {
		tokens := len(enc.Encode(p.text, nil, nil))

		if tokens > maxTokens {
			flush()
			// Oversized paragraph: approximate 4 bytes per token.
			step := maxTokens * 4
			for from := 0; from < len(p.text); from += step {
				to := from + step
				if to > len(p.text) {
					to = len(p.text)
				}
				chunks = append(chunks, textChunk{start: p.start + from, text: p.text[from:to]})
			}
			continue
		}

		if chunkStart >= 0 && currentTokens+tokens > maxTokens {
			flush()
		}
		if chunkStart < 0 {
			chunkStart = p.start
		}
		chunkEnd = p.start + len(p.text)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}
