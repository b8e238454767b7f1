package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iou-concept/kompas/internal/util"
	"github.com/iou-concept/kompas/pkg/ai"

	"github.com/openai/openai-go/v3"
)

const defaultDimensions = 1536

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Empty input yields a zero vector of
// the configured dimension rather than a provider call.
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	dim := int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
	if len(input) == 0 || strings.TrimSpace(string(input)) == "" {
		return make([]float32, dim), nil
	}
	if c.EmbeddingClient == nil {
		return nil, fmt.Errorf("embedding endpoint is not configured")
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	if err := c.embeddingLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.embeddingLock.Release(1)

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{string(input)}},
		Model: c.embeddingModel,
	}

	start := time.Now()
	res, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(res.Usage.PromptTokens),
		TotalTokens: int(res.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(res.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Data))
	}

	out := make([]float32, 0, len(res.Data[0].Embedding))
	for _, v := range res.Data[0].Embedding {
		out = append(out, float32(v))
	}
	return out, nil
}
