package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"apiscribe/internal/types"
)

func sampleRequest() types.GenerationRequest {
	return types.GenerationRequest{
		System:          "be terse",
		Prompt:          "write tests",
		Temperature:     0.1,
		MaxOutputTokens: 256,
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Provider: "zai", Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: ProviderOpenAI})
	assert.Error(t, err, "model is required for networked providers")

	_, err = NewClient(Config{Provider: ProviderReplay})
	assert.Error(t, err, "replay needs a file")

	c, err := NewClient(Config{Provider: ProviderReplay, ReplayFile: "resp.txt"})
	require.NoError(t, err)
	assert.IsType(t, &ReplayClient{}, c)
}

func TestGenerate_EmptyKeyFailsBeforeIO(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	for _, p := range []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		t.Run(string(p), func(t *testing.T) {
			c, err := NewClient(Config{Provider: p, Model: "m", BaseURL: srv.URL, APIKey: "  "})
			require.NoError(t, err)

			_, err = c.Generate(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrGeneration))
			assert.True(t, errors.Is(err, types.ErrAuthentication))
			assert.Equal(t, types.KindGeneration, types.KindOf(err))
		})
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestOpenAI_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"generated body"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "generated body", resp.RawText)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestOpenAI_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAuthentication), "got %v", err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), types.ErrNetwork},
		{"canceled", context.Canceled, types.ErrNetwork},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, types.ErrNetwork},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("no route")}, types.ErrNetwork},
		{"genai 401", genai.APIError{Code: 401, Message: "API key not valid"}, types.ErrAuthentication},
		{"genai 403", fmt.Errorf("wrapped: %w", genai.APIError{Code: 403}), types.ErrAuthentication},
		{"genai 500", genai.APIError{Code: 500, Message: "internal"}, types.ErrService},
		{"status 429", &StatusError{Code: 429, Message: "slow down"}, types.ErrService},
		{"status 401", &StatusError{Code: 401}, types.ErrAuthentication},
		{"message 401", errors.New("error, status code: 401, status: 401 Unauthorized"), types.ErrAuthentication},
		{"invalid key text", errors.New("invalid x-api-key: invalid_api_key"), types.ErrAuthentication},
		{"other", errors.New("model overloaded"), types.ErrService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestRemoteClient_EmptyResponseIsServiceError(t *testing.T) {
	c := &remoteClient{
		cfg:     Config{Provider: ProviderOpenAI, Model: "m", APIKey: "k"},
		backend: backendFunc(func(context.Context, string, types.GenerationRequest) (string, error) { return "  \n", nil }),
	}
	_, err := c.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrService))
}

func TestRemoteClient_TimeoutIsNetworkError(t *testing.T) {
	c := &remoteClient{
		cfg: Config{Provider: ProviderOpenAI, Model: "m", APIKey: "k", Timeout: 10 * time.Millisecond},
		backend: backendFunc(func(ctx context.Context, _ string, _ types.GenerationRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	}
	_, err := c.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNetwork))
}

func TestRemoteClient_PromptUnmodified(t *testing.T) {
	var seen types.GenerationRequest
	var model string
	c := &remoteClient{
		cfg: Config{Provider: ProviderAnthropic, Model: "default-model", APIKey: "k"},
		backend: backendFunc(func(_ context.Context, m string, req types.GenerationRequest) (string, error) {
			seen, model = req, m
			return "ok", nil
		}),
	}
	req := sampleRequest()
	_, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, seen)
	assert.Equal(t, "default-model", model)

	req.Model = "override"
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "override", model)
}

func TestReplayClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.txt")
	require.NoError(t, os.WriteFile(path, []byte("recorded\n"), 0644))

	resp, err := (&ReplayClient{Path: path}).Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "recorded\n", resp.RawText)
	assert.Equal(t, "replay", resp.Provider)

	_, err = (&ReplayClient{Path: path + ".missing"}).Generate(context.Background(), sampleRequest())
	assert.True(t, errors.Is(err, types.ErrService))
}

func TestStaticClient(t *testing.T) {
	c := NewStaticClient("answer")
	resp, err := c.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.RawText)
	assert.Len(t, c.Requests(), 1)

	c.Err = &StatusError{Code: 403, Message: "forbidden"}
	_, err = c.Generate(context.Background(), sampleRequest())
	assert.True(t, errors.Is(err, types.ErrAuthentication))
}

func TestToSchemaMessages(t *testing.T) {
	msgs := toSchemaMessages(sampleRequest())
	require.Len(t, msgs, 2)
	assert.Equal(t, "be terse", msgs[0].Content)
	assert.Equal(t, "write tests", msgs[1].Content)
}

type backendFunc func(ctx context.Context, model string, req types.GenerationRequest) (string, error)

func (f backendFunc) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	return f(ctx, model, req)
}
