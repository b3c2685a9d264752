package generation

import (
	"context"
	"fmt"
	"os"
	"time"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// ReplayClient answers every request with the contents of a recorded
// response file. It needs no credential and makes no network call.
type ReplayClient struct {
	Path string
}

func (c *ReplayClient) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.GenerationResponse{}, &types.GenerationError{Provider: string(ProviderReplay), Cause: types.ErrNetwork, Err: err}
	}

	start := time.Now()
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return types.GenerationResponse{}, &types.GenerationError{
			Provider: string(ProviderReplay),
			Cause:    types.ErrService,
			Err:      fmt.Errorf("read recorded response: %w", err),
		}
	}
	logging.GenerationDebug("replay: served %d bytes from %s", len(data), c.Path)

	return types.GenerationResponse{
		RawText:  string(data),
		Provider: string(ProviderReplay),
		Model:    req.Model,
		Duration: time.Since(start),
	}, nil
}
