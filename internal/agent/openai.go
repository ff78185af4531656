package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenAI-compatible endpoint of a local LM Studio
// server.
const DefaultBaseURL = "http://localhost:1234/v1"

// ErrNoChoices indicates the model returned an empty response.
var ErrNoChoices = errors.New("agent: model returned no choices")

// Compile-time check that Client implements LLM.
var _ LLM = (*Client)(nil)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	logger      *zap.Logger
}

type clientOptions struct {
	apiKey      string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithAPIKey sets the bearer token. Local servers ignore it.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) { o.apiKey = key }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(o *clientOptions) { o.temperature = t }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = h }
}

// WithRetries sets how often throttled or failed requests are retried and
// the initial backoff.
func WithRetries(n int, delay time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.maxRetries = n
		o.retryDelay = delay
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient creates a client for model at baseURL. An empty baseURL means
// DefaultBaseURL.
func NewClient(baseURL, model string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	o := clientOptions{
		temperature: 0.2,
		maxRetries:  2,
		retryDelay:  500 * time.Millisecond,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(o.apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = o.httpClient

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: o.temperature,
		maxRetries:  o.maxRetries,
		retryDelay:  o.retryDelay,
		logger:      o.logger,
	}
}

// Chat sends the conversation and returns the model's reply. Throttling,
// server errors and transport failures are retried with exponential backoff;
// the client library does not retry on its own.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(c.temperature),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying chat request", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, ErrNoChoices
			}
			return fromOpenAIMessage(resp.Choices[0].Message), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryable reports whether err is a throttling response, a server error or
// a transport failure.
func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var urlErr *url.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &urlErr):
		return true
	default:
		return false
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) *Message {
	msg := &Message{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	for _, call := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   call.ID,
			Type: string(call.Type),
			Function: FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return msg
}
