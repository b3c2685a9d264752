package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"apiscribe/internal/types"
)

// openAIBackend calls the chat completions API through the eino OpenAI model.
type openAIBackend struct {
	apiKey  string
	baseURL string
	timeout time.Duration
}

func (b *openAIBackend) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	maxTokens := req.MaxOutputTokens
	temperature := float32(req.Temperature)

	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      b.apiKey,
		BaseURL:     b.baseURL,
		Model:       model,
		Timeout:     b.timeout,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create chat model: %w", err)
	}

	out, err := chat.Generate(ctx, toSchemaMessages(req))
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// toSchemaMessages converts request messages to eino messages.
func toSchemaMessages(req types.GenerationRequest) []*schema.Message {
	msgs := req.Messages()
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
