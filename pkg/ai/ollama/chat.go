package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/iou-concept/kompas/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateCompletion sends a single prompt to the extraction model and
// returns the reply as plain text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	res, err := c.chat(ctx, options, prompt, nil)
	if err != nil {
		return "", err
	}
	return res, nil
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}
	var format json.RawMessage = formatBytes

	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	res, err := c.chat(ctx, options, prompt, format)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(res, out)
}

func (c *GraphOllamaClient) chat(
	ctx context.Context,
	options ai.GenerateOptions,
	prompt string,
	format json.RawMessage,
) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	messages := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		messages = append(messages, api.Message{Role: "system", Content: sp})
	}
	messages = append(messages, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: messages,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": options.Temperature},
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var content string
	var lastRes api.ChatResponse
	start := time.Now()
	err := c.Client.Chat(rCtx, req, func(res api.ChatResponse) error {
		content += res.Message.Content
		lastRes = res
		return nil
	})
	if err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  lastRes.PromptEvalCount,
		OutputTokens: lastRes.EvalCount,
		TotalTokens:  lastRes.PromptEvalCount + lastRes.EvalCount,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	return content, nil
}
