package generation

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"

	"apiscribe/internal/types"
)

// anthropicBackend calls the Messages API through the eino Claude model.
type anthropicBackend struct {
	apiKey  string
	baseURL string
}

func (b *anthropicBackend) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	temperature := float32(req.Temperature)
	cfg := &claude.Config{
		APIKey:      b.apiKey,
		Model:       model,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: &temperature,
	}
	if b.baseURL != "" {
		baseURL := b.baseURL
		cfg.BaseURL = &baseURL
	}

	chat, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("create chat model: %w", err)
	}

	out, err := chat.Generate(ctx, toSchemaMessages(req))
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
