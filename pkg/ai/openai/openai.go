// Package openai implements ai.GraphAIClient against any OpenAI-compatible
// API, with separate endpoints for chat and embeddings.
package openai

import (
	"sync"

	"github.com/iou-concept/kompas/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient manages separate OpenAI clients for embeddings and
// extraction completions. Create it with NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	extractionModel string
	embeddingModel  string

	chatURL      string
	chatKey      string
	embeddingURL string
	embeddingKey string

	timeoutMin int

	reqLock       *semaphore.Weighted
	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams configures a GraphOpenAIClient.
//
// ExtractionModel is used for structured entity extraction, EmbeddingModel
// for vector embeddings. URL/Key pairs configure the respective endpoints;
// an empty key disables that capability.
type NewGraphOpenAIClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	RequestTimeoutMin     int
	MaxConcurrentRequests int64
}

// NewGraphOpenAIClient creates a client for OpenAI-compatible endpoints.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		ExtractionModel: "gpt-4o-mini",
//		EmbeddingModel:  "text-embedding-3-small",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	timeoutMin := params.RequestTimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 15
	}

	return &GraphOpenAIClient{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		timeoutMin: timeoutMin,

		reqLock:       semaphore.NewWeighted(maxConcurrent),
		embeddingLock: semaphore.NewWeighted(maxConcurrent),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(options...)
	return &client
}

func (c *GraphOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated model metrics.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the accumulated model metrics.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
