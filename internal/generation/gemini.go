package generation

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"apiscribe/internal/types"
)

// geminiBackend calls GenerateContent on the Gemini API.
type geminiBackend struct {
	apiKey  string
	baseURL string
}

func (b *geminiBackend) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	cc := &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if b.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
