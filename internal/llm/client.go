package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client abstracts a chat-completion call against a text-generation service
type Client interface {
	// Complete sends one system+user exchange and returns the raw
	// assistant response text
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClient implements Client over the OpenAI chat completions API
type OpenAIClient struct {
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// OpenAIOption configures an OpenAIClient
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the model name (default: "gpt-5")
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens bounds the completion token budget (0 means provider default)
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRequestTimeout bounds a single completion call (default: 5 minutes)
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewOpenAIClient creates a client for the given API key
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		api:     openai.NewClient(apiKey),
		model:   "gpt-5",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements Client
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}

	resp, err := c.api.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// MockClient is a test implementation of Client
type MockClient struct {
	// CompleteFunc is called when Complete is invoked
	CompleteFunc func(ctx context.Context, system, user string) (string, error)

	// Calls counts Complete invocations
	Calls int
}

// Complete delegates to CompleteFunc
func (m *MockClient) Complete(ctx context.Context, system, user string) (string, error) {
	m.Calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user)
	}
	return "", nil
}
