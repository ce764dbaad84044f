package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultModel = openai.ChatModelGPT4o

// OpenAIBackend calls the OpenAI chat completions API.
type OpenAIBackend struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	b := &OpenAIBackend{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model: defaultModel,
	}
	if model != "" {
		b.model = openai.ChatModel(model)
	}
	return b
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: b.model,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
