package generation

import (
	"context"
	"sync"

	"apiscribe/internal/types"
)

// StaticClient is an in-memory Client that returns a fixed answer.
// It records every request it receives.
type StaticClient struct {
	Text string
	Err  error

	mu       sync.Mutex
	requests []types.GenerationRequest
}

// NewStaticClient returns a client that always answers text.
func NewStaticClient(text string) *StaticClient {
	return &StaticClient{Text: text}
}

func (c *StaticClient) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return types.GenerationResponse{}, &types.GenerationError{Provider: "static", Cause: types.ErrNetwork, Err: err}
	}
	if c.Err != nil {
		return types.GenerationResponse{}, &types.GenerationError{Provider: "static", Cause: classify(c.Err), Err: c.Err}
	}
	return types.GenerationResponse{RawText: c.Text, Provider: "static", Model: req.Model}, nil
}

// Requests returns the requests seen so far.
func (c *StaticClient) Requests() []types.GenerationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.GenerationRequest(nil), c.requests...)
}
