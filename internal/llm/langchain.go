package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultOllamaModel    = "qwen2.5-coder:7b"
	defaultOllamaURL      = "http://localhost:11434"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultTemperature    = 0.2
	defaultMaxTokens      = 2048
	defaultRequestsPerSec = 1.0
	defaultBurst          = 2
)

// Config selects and tunes a langchaingo-backed provider.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	// Temperature is nil for the default.
	Temperature *float64
	MaxTokens   int
	// RateLimit is requests per second shared by every caller; zero uses
	// the default, negative disables limiting.
	RateLimit float64
	Burst     int
}

// LangChain is a Client over a langchaingo model.
type LangChain struct {
	provider string
	model    llms.Model
	limiter  *rate.Limiter
	defaults Options
}

var _ Client = (*LangChain)(nil)

// New builds the provider named by cfg.Provider.
func New(cfg Config) (*LangChain, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case ProviderOllama, "":
		cfg.Provider = ProviderOllama
		opts := []ollama.Option{
			ollama.WithModel(orDefault(cfg.Model, defaultOllamaModel)),
			ollama.WithServerURL(orDefault(cfg.BaseURL, defaultOllamaURL)),
		}
		model, err = ollama.New(opts...)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(orDefault(cfg.Model, defaultOpenAIModel)),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(orDefault(cfg.Model, defaultAnthropicModel)),
		)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}

	return NewWithModel(cfg.Provider, model, cfg), nil
}

// NewWithModel wraps an existing langchaingo model. Only the timeout,
// sampling and rate fields of cfg are used.
func NewWithModel(provider string, model llms.Model, cfg Config) *LangChain {
	defaults := Options{
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = DefaultTimeout
	}
	if defaults.Temperature == nil {
		defaults.Temperature = Temperature(defaultTemperature)
	}
	if defaults.MaxTokens == 0 {
		defaults.MaxTokens = defaultMaxTokens
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RateLimit < 0:
	case cfg.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultRequestsPerSec), defaultBurst)
	default:
		burst := cfg.Burst
		if burst < 1 {
			burst = defaultBurst
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &LangChain{provider: provider, model: model, limiter: limiter, defaults: defaults}
}

// Provider returns the provider name.
func (c *LangChain) Provider() string { return c.provider }

// Generate sends prompt as a single human message.
func (c *LangChain) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = c.merge(opts)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &CallError{Provider: c.provider, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(callCtx, c.model, prompt,
		llms.WithTemperature(*opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", classify(ctx, callCtx, c.provider, opts.Timeout, err)
	}
	return out, nil
}

func (c *LangChain) merge(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = c.defaults.Timeout
	}
	if opts.Temperature == nil {
		opts.Temperature = c.defaults.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = c.defaults.MaxTokens
	}
	return opts
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
