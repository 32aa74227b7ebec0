package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// DefaultModel is the model used when none is configured
const DefaultModel = "claude-sonnet-4-5-20250929"

const explainPrompt = `You are WhyFlow, an execution flow debugger.
Compare the expected behavior (static analysis) with what actually happened (runtime trace).
Explain why the code failed in 2-3 sentences.

Static Context (functions and their relations):
%s

Runtime Trace (last events):
%s

Output format:
"According to the codebase design, [expected]. At runtime, [actual] happened instead. This caused [result]."`

const describePrompt = `Describe what this function does in one short sentence.
Focus on its responsibility in the codebase.
Function Name: %s
Code:
%s`

// Client explains failures and describes functions with the Anthropic messages API
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
	requests  []option.RequestOption
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithModel sets the model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds a single request
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRate limits requests to one per interval with the given burst
func WithRate(interval time.Duration, burst int) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), max(burst, 1))
		}
	}
}

// WithRequestOptions passes options to the underlying SDK client
func WithRequestOptions(options ...option.RequestOption) ClientOption {
	return func(c *Client) {
		c.requests = append(c.requests, options...)
	}
}

// Explain asks the model why a run failed
func (c *Client) Explain(ctx context.Context, staticContext, runtimeTrace string) (string, error) {
	return c.complete(ctx, fmt.Sprintf(explainPrompt, staticContext, runtimeTrace), 512)
}

// Describe asks the model for a one sentence function description
func (c *Client) Describe(ctx context.Context, name, code string) (string, error) {
	return c.complete(ctx, fmt.Sprintf(describePrompt, name, code), 128)
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &ExplanationError{Service: "anthropic", Err: err}
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &ExplanationError{Service: "anthropic", Err: err}
	}
	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// NewClient creates a client; an API key is required
func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not set")
	}
	ret := &Client{
		model:   DefaultModel,
		timeout: 30 * time.Second,
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.client = anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, ret.requests...)...)
	return ret, nil
}
