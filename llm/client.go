package llm

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

const (
	DefaultTemperature  = 0.7
	DefaultTimeout      = 5 * time.Minute
	DefaultSystemPrompt = "You are a helpful assistant. Always answer with a single valid JSON object and no other text."
)

// ChatClient defines the chat completion operation used by Client
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// CallObserver receives the outcome of every backend attempt
type CallObserver interface {
	BackendCall(outcome string, elapsed time.Duration)
}

// Client sends one bounded prompt to the backend per Generate call, with a
// per-attempt timeout and the configured retry policy. It keeps no state
// between calls.
type Client struct {
	chat         ChatClient
	model        string
	systemPrompt string
	temperature  float64
	timeout      time.Duration
	policy       RetryPolicy
	sleep        pipeline.SleepFunc
	observer     CallObserver
}

// Option configures a Client
type Option func(*Client)

func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithTimeout bounds each attempt, not the whole call
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleep replaces the backoff sleep (for testing)
func WithSleep(fn pipeline.SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new Client
func NewClient(chat ChatClient, model string, opts ...Option) *Client {
	c := &Client{
		chat:         chat,
		model:        model,
		systemPrompt: DefaultSystemPrompt,
		temperature:  DefaultTemperature,
		timeout:      DefaultTimeout,
		policy:       DefaultRetryPolicy(),
		sleep:        pipeline.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the raw text of the first choice for prompt
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	return Do(ctx, c.policy, c.sleep, func(ctx context.Context, attempt int) (string, error) {
		return c.complete(ctx, prompt, maxTokens, attempt)
	})
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int64, attempt int) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}

	log.Debugf("[llm] attempt %d: model=%s, maxTokens=%d, promptLen=%d", attempt, c.model, maxTokens, len(prompt))

	started := time.Now()
	resp, err := c.chat.New(attemptCtx, params)
	elapsed := time.Since(started)
	if err != nil {
		c.observe("error", elapsed)
		return "", err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		c.observe("empty", elapsed)
		return "", &pipeline.MalformedOutputError{Reason: "backend returned no content"}
	}

	c.observe("ok", elapsed)
	log.Debugf("[llm] attempt %d: received %d chars in %v", attempt, len(content), elapsed.Round(time.Millisecond))
	return content, nil
}

func (c *Client) observe(outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.BackendCall(outcome, elapsed)
	}
}
