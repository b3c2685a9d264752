// Package generation sends a composed request to a text-generation backend
// and returns the raw answer. Exactly one backend call is made per Generate;
// failures are classified as network, authentication or service errors and
// are never retried here.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Client is the generation backend contract.
type Client interface {
	Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResponse, error)
}

// Provider identifies a backend implementation.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderReplay    Provider = "replay"
)

// Config selects and configures a backend. The credential is passed in
// explicitly; clients never consult the environment.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration

	// ReplayFile is read by the replay provider instead of calling a service.
	ReplayFile string
}

// backend performs one completion and returns the response text.
type backend interface {
	complete(ctx context.Context, model string, req types.GenerationRequest) (string, error)
}

// NewClient creates the client for cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	var b backend
	switch cfg.Provider {
	case ProviderOpenAI:
		b = &openAIBackend{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, timeout: cfg.Timeout}
	case ProviderAnthropic:
		b = &anthropicBackend{apiKey: cfg.APIKey, baseURL: cfg.BaseURL}
	case ProviderGemini:
		b = &geminiBackend{apiKey: cfg.APIKey, baseURL: cfg.BaseURL}
	case ProviderReplay:
		if cfg.ReplayFile == "" {
			return nil, fmt.Errorf("replay provider requires a response file")
		}
		return &ReplayClient{Path: cfg.ReplayFile}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %s", cfg.Provider)
	}
	return &remoteClient{cfg: cfg, backend: b}, nil
}

// remoteClient applies the shared call policy around a networked backend.
type remoteClient struct {
	cfg     Config
	backend backend
}

func (c *remoteClient) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResponse, error) {
	provider := string(c.cfg.Provider)
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return types.GenerationResponse{}, &types.GenerationError{
			Provider: provider,
			Cause:    types.ErrAuthentication,
			Err:      fmt.Errorf("no API key configured"),
		}
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	logging.Generation("%s: requesting model=%s prompt=%d bytes", provider, model, len(req.Prompt))
	start := time.Now()
	text, err := c.backend.complete(ctx, model, req)
	elapsed := time.Since(start)
	if err != nil {
		gerr := &types.GenerationError{Provider: provider, Cause: classify(err), Err: err}
		logging.GenerationError("%s: request failed after %v: %v", provider, elapsed, gerr)
		return types.GenerationResponse{}, gerr
	}
	if strings.TrimSpace(text) == "" {
		return types.GenerationResponse{}, &types.GenerationError{
			Provider: provider,
			Cause:    types.ErrService,
			Err:      fmt.Errorf("empty response"),
		}
	}

	logging.Generation("%s: received %d bytes in %v", provider, len(text), elapsed)
	return types.GenerationResponse{
		RawText:  text,
		Provider: provider,
		Model:    model,
		Duration: elapsed,
	}, nil
}
