package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thurstone/internal/ports"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = NewClient("nope", ClientConfig{APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider: nope")
}

func TestProviders_Registered(t *testing.T) {
	assert.Subset(t, Providers(), []string{"anthropic", "google", "openai"})
	assert.IsIncreasing(t, Providers())
}

func TestNewClient_AppliesMiddlewareInOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &orderLLM{CoreLLM: next, name: name, order: &order}
		}
	}

	core := newFakeCore()
	RegisterProviderFactory("fake-order", func(ClientConfig) (CoreLLM, error) { return core, nil })

	client, err := NewClient("fake-order", ClientConfig{
		APIKey:     "k",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type orderLLM struct {
	CoreLLM
	name  string
	order *[]string
}

func (o *orderLLM) DoRequest(ctx context.Context, p string, opts map[string]any) (string, int, int, error) {
	*o.order = append(*o.order, o.name)
	return o.CoreLLM.DoRequest(ctx, p, opts)
}

func TestClient_CompleteAndUsage(t *testing.T) {
	core := newFakeCore()
	client := NewClientFromCore(core, nil)

	var _ ports.LLMClient = client

	text, in, out, err := client.CompleteWithUsage(context.Background(), "prompt", map[string]any{"temperature": 0.0})
	require.NoError(t, err)
	assert.Equal(t, core.Response, text)
	assert.Equal(t, 10, in)
	assert.Equal(t, 4, out)
	assert.Equal(t, "prompt", core.lastPrompt)
	assert.Equal(t, "fake-model", client.GetModel())

	n, err := client.EstimateTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCharTokenEstimator(t *testing.T) {
	e := CharTokenEstimator{CharsPerToken: 4}
	assert.Equal(t, 0, e.EstimateTokens(""))
	assert.Equal(t, 1, e.EstimateTokens("a"))
	assert.Equal(t, 3, e.EstimateTokens("abcdefghij"))
	assert.Equal(t, 0, CharTokenEstimator{}.EstimateTokens("abc"))
}

func TestParseRequestOptions(t *testing.T) {
	opts := ParseRequestOptions(map[string]any{
		"max_tokens":  float64(64),
		"temperature": 0.2,
		"top_p":       5.0,
		"system":      "be brief",
		"seed":        7,
	}, "default")

	assert.Equal(t, 64, opts.MaxTokens)
	assert.Equal(t, "default", opts.Model)
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.2, *opts.Temperature)
	assert.Nil(t, opts.TopP, "out of range top_p is ignored")
	assert.Equal(t, "be brief", opts.System)
	assert.Equal(t, 7, opts.Extra["seed"])

	def := ParseRequestOptions(nil, "m")
	assert.Equal(t, DefaultMaxTokens, def.MaxTokens)
	assert.Empty(t, def.Extra)
}

func TestValidateBaseURL(t *testing.T) {
	u, err := ValidateBaseURL("")
	require.NoError(t, err)
	assert.Empty(t, u)

	u, err = ValidateBaseURL("https://api.example.com/v1")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", u)

	for _, bad := range []string{"ftp://x", "api.example.com", "http://"} {
		_, err := ValidateBaseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestProviderError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}
	base := errors.New("boom")

	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
		sentinel  error
	}{
		{401, ErrorTypeAuthentication, false, ports.ErrAuthenticationFailed},
		{429, ErrorTypeRateLimit, true, ports.ErrRateLimited},
		{400, ErrorTypeBadRequest, false, nil},
		{404, ErrorTypeNotFound, false, nil},
		{503, ErrorTypeServerError, true, ports.ErrServiceUnavailable},
		{504, ErrorTypeTimeout, true, ports.ErrTimeout},
	}
	for _, tt := range tests {
		err := ec.ClassifyHTTPError(tt.status, "msg", base)
		assert.Equal(t, tt.wantType, err.Type, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.IsRetryable(), "status %d", tt.status)
		assert.ErrorIs(t, err, base)
		if tt.sentinel != nil {
			assert.ErrorIs(t, err, tt.sentinel, "status %d", tt.status)
		}
	}

	err := ec.ClassifyHTTPError(429, "", base)
	assert.Equal(t, "openai error (HTTP 429) [rate_limit]: openai rate limit exceeded: boom", err.Error())

	assert.Equal(t, ErrorTypeTimeout, ec.ClassifyContextError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeNetwork, ec.ClassifyContextError(context.Canceled).Type)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(NewProviderError("x", ErrorTypeAuthentication, 401, "", nil)))
	assert.True(t, IsRetryable(NewProviderError("x", ErrorTypeServerError, 500, "", nil)))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}
