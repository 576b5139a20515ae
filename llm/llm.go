// Package llm provides a thin text-generation client on top of gollm.
//
// The orchestration core only needs one primitive from a provider: given a
// system prompt and a user prompt, return the model's text. The Generator
// interface captures that primitive; Client implements it by wrapping a
// gollm.LLM instance, so any provider gollm supports (OpenAI, Anthropic,
// Gemini, Ollama, ...) can back the decision, generation, and evaluation
// ports. Transient provider failures are retried inside gollm; the
// orchestration layers above never retry.
package llm

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
)

// Request is a single blocking generation request.
type Request struct {
	System    string // system prompt; empty to omit
	Prompt    string // user prompt
	MaxTokens int    // response budget; 0 uses the client default
}

// Generator is the minimal text-generation contract used by all LLM-facing
// ports. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client wraps a gollm.LLM instance as a Generator.
type Client struct {
	llm gollm.LLM
}

type config struct {
	provider    string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	maxRetries  int
	extraOpts   []gollm.ConfigOption
}

// Option configures a Client.
type Option func(*config)

// WithProvider sets the gollm provider name ("openai", "anthropic", ...).
func WithProvider(provider string) Option {
	return func(c *config) { c.provider = provider }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithAPIKey sets the API key. If empty, gollm reads it from the provider's
// environment variable.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithMaxTokens sets the default response token budget.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithMaxRetries sets how many times gollm retries transient provider
// failures before surfacing the error.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithGollmOptions appends extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) Option {
	return func(c *config) { c.extraOpts = append(c.extraOpts, opts...) }
}

// New creates a Client for the configured provider.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		provider:    "openai",
		maxTokens:   4096,
		temperature: 0.7,
		maxRetries:  2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		switch cfg.provider {
		case "anthropic":
			model = "claude-sonnet-4-5-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(cfg.maxRetries),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	l, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gollm LLM for provider %s: %w", cfg.provider, err)
	}
	return &Client{llm: l}, nil
}

// NewFromLLM wraps an existing gollm.LLM instance.
func NewFromLLM(l gollm.LLM) *Client {
	return &Client{llm: l}
}

// Generate sends a blocking request and returns the model's text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	promptOpts := []gollm.PromptOption{}
	if req.System != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(req.System, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}
	prompt := gollm.NewPrompt(req.Prompt, promptOpts...)
	return c.llm.Generate(ctx, prompt)
}

// GeneratorFunc adapts a function to the Generator interface. Useful for
// tests and for wrapping non-gollm backends.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
