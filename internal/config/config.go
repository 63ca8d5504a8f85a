// Package config loads owera configuration from YAML and the environment.
//
// Sections mirror the components they configure. Logging and telemetry keep
// their own shapes here so those packages can depend on config for Duration
// and Secret without a cycle; cmd/owera converts them.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Supported model providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOffline   = "offline"
)

// Config holds the complete owera configuration.
type Config struct {
	Model        ModelConfig        `koanf:"model"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Output       OutputConfig       `koanf:"output"`
	Publish      PublishConfig      `koanf:"publish"`
	Checkpoint   CheckpointConfig   `koanf:"checkpoint"`
	Events       EventsConfig       `koanf:"events"`
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

// ModelConfig selects the language model backend.
type ModelConfig struct {
	Provider    string   `koanf:"provider"`
	Name        string   `koanf:"name"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Timeout     Duration `koanf:"timeout"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	// RateLimit is requests per second across all workers.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// OrchestratorConfig bounds the control loop.
type OrchestratorConfig struct {
	MaxCycles   int `koanf:"max_cycles"`
	Parallelism int `koanf:"parallelism"`
}

// OutputConfig controls the generated project on disk.
type OutputConfig struct {
	Dir         string `koanf:"dir"`
	Git         bool   `koanf:"git"`
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`
	ScanSecrets bool   `koanf:"scan_secrets"`
}

// PublishConfig controls pushing the generated project to GitHub.
type PublishConfig struct {
	Enabled bool   `koanf:"enabled"`
	Owner   string `koanf:"owner"`
	Private bool   `koanf:"private"`
	Token   Secret `koanf:"token"`
}

// CheckpointConfig controls per-cycle snapshot persistence.
type CheckpointConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// EventsConfig controls lifecycle event publishing over NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	Embedded      bool   `koanf:"embedded"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the user-facing subset of logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// TelemetryConfig is the user-facing subset of telemetry.Config.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// NewDefaultConfig returns defaults for a local Ollama setup.
func NewDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderOllama,
			Name:        "qwen2.5-coder:7b",
			BaseURL:     "http://localhost:11434",
			Timeout:     Duration(60 * time.Second),
			Temperature: 0.2,
			MaxTokens:   2048,
			RateLimit:   1.0,
			Burst:       2,
		},
		Orchestrator: OrchestratorConfig{
			MaxCycles:   100,
			Parallelism: 1,
		},
		Output: OutputConfig{
			Dir:         "./generated_app",
			Git:         true,
			AuthorName:  "owera",
			AuthorEmail: "owera@localhost",
			ScanSecrets: true,
		},
		Publish: PublishConfig{
			Private: true,
		},
		Checkpoint: CheckpointConfig{
			Path: defaultCheckpointPath(),
		},
		Events: EventsConfig{
			URL:           "nats://localhost:4222",
			Embedded:      true,
			SubjectPrefix: "owera",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderOffline:
	default:
		errs = append(errs, fmt.Errorf("model.provider must be one of ollama, openai, anthropic, offline; got %q", c.Model.Provider))
	}
	if c.Model.Provider != ProviderOffline && c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	if c.Model.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Model.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("model.base_url: %w", err))
		}
	}
	if c.Model.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("model.timeout must be positive"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be between 0 and 2, got %v", c.Model.Temperature))
	}
	if c.Model.RateLimit < 0 {
		errs = append(errs, errors.New("model.rate_limit cannot be negative"))
	}
	if c.Model.RateLimit > 0 && c.Model.Burst < 1 {
		errs = append(errs, errors.New("model.burst must be at least 1 when rate limiting"))
	}

	if c.Orchestrator.MaxCycles < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_cycles must be at least 1, got %d", c.Orchestrator.MaxCycles))
	}
	if c.Orchestrator.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.parallelism must be at least 1, got %d", c.Orchestrator.Parallelism))
	}

	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir is required"))
	}
	if c.Publish.Enabled {
		if !c.Output.Git {
			errs = append(errs, errors.New("publish requires output.git"))
		}
		if !c.Publish.Token.IsSet() {
			errs = append(errs, errors.New("publish.token is required when publishing"))
		}
	}

	if c.Checkpoint.Enabled && c.Checkpoint.Path == "" {
		errs = append(errs, errors.New("checkpoint.path is required when checkpoints are enabled"))
	}
	if c.Events.Enabled {
		if !c.Events.Embedded && c.Events.URL == "" {
			errs = append(errs, errors.New("events.url is required without an embedded server"))
		}
		if c.Events.SubjectPrefix == "" {
			errs = append(errs, errors.New("events.subject_prefix is required"))
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
	}

	return errors.Join(errs...)
}
