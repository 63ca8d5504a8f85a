package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/config"
	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/scaffold"
	"github.com/fyrsmithlabs/owera/internal/services"
	"github.com/fyrsmithlabs/owera/internal/telemetry"
	"github.com/fyrsmithlabs/owera/internal/worker"
)

// logSink selects where the process logs go.
type logSink int

const (
	// sinkStdout is the default for long-running commands.
	sinkStdout logSink = iota
	// sinkStderr keeps stdout free for JSON output or the MCP protocol.
	sinkStderr
	// sinkFile is used while the dashboard owns the terminal.
	sinkFile
)

// appOptions are the command-line overrides applied on top of the config.
type appOptions struct {
	configPath string
	offline    bool
	sink       logSink
	logFile    string
}

// app holds everything a command needs, built once from configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  services.Registry
	store     checkpoint.Store
	events    *events.NATSPublisher
	embedded  *events.Embedded
}

// newApp initializes dependencies in order: config, telemetry, logger,
// model client, checkpoints, events, publisher, then the registry.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.offline {
		cfg.Model.Provider = config.ProviderOffline
	}

	a := &app{cfg: cfg, store: checkpoint.NoOp{}}

	a.telemetry, err = telemetry.New(ctx, telemetry.FromSection(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	a.logger, err = newLogger(cfg, opts, a.telemetry)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	if err := a.init(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg
	tracer := a.telemetry.Tracer("owera")

	client, err := newModelClient(cfg.Model, tracer)
	if err != nil {
		return fmt.Errorf("model client: %w", err)
	}
	workers, err := worker.NewRegistry(worker.Deps{
		Client: client,
		Options: llm.Options{
			Timeout:     cfg.Model.Timeout.Duration(),
			Temperature: llm.Temperature(cfg.Model.Temperature),
			MaxTokens:   cfg.Model.MaxTokens,
		},
	})
	if err != nil {
		return err
	}

	if cfg.Checkpoint.Enabled {
		store, err := checkpoint.Open(checkpoint.Config{
			Path:   cfg.Checkpoint.Path,
			Logger: a.logger.Underlying().Named("checkpoint"),
		})
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		a.store = store
	}

	var publisher events.Publisher = events.NoOp{}
	if cfg.Events.Enabled {
		if err := a.connectEvents(ctx); err != nil {
			return err
		}
		publisher = a.events
	}

	var repos *scaffold.Publisher
	if cfg.Publish.Enabled {
		repos, err = scaffold.NewPublisher(ctx, cfg.Publish.Token, scaffold.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("publisher: %w", err)
		}
	}

	a.registry, err = services.NewRegistry(services.Options{
		Logger:      a.logger,
		Workers:     workers,
		Checkpoints: a.store,
		Events:      publisher,
		Publisher:   repos,
		Defaults: services.Defaults{
			MaxCycles:   cfg.Orchestrator.MaxCycles,
			Parallelism: cfg.Orchestrator.Parallelism,
			Output: scaffold.Config{
				Dir:         cfg.Output.Dir,
				Git:         cfg.Output.Git,
				AuthorName:  cfg.Output.AuthorName,
				AuthorEmail: cfg.Output.AuthorEmail,
				ScanSecrets: cfg.Output.ScanSecrets,
			},
			Publish: scaffold.PublishOptions{
				Owner:   cfg.Publish.Owner,
				Private: cfg.Publish.Private,
			},
		},
		Tracer: tracer,
		Meter:  a.telemetry.Meter("owera"),
	})
	return err
}

// connectEvents starts the embedded NATS server when configured, then
// connects the publisher.
func (a *app) connectEvents(ctx context.Context) error {
	cfg := a.cfg.Events
	natsURL := cfg.URL
	if cfg.Embedded {
		host, port, err := natsHostPort(cfg.URL)
		if err != nil {
			return err
		}
		a.embedded, err = events.StartEmbedded(host, port)
		if err != nil {
			return err
		}
		natsURL = a.embedded.URL()
		a.logger.Info(ctx, "embedded NATS server started", zap.String("url", natsURL))
	}

	p, err := events.Connect(natsURL, cfg.SubjectPrefix, a.logger.Underlying().Named("events"))
	if err != nil {
		return fmt.Errorf("connect events: %w", err)
	}
	a.events = p
	return nil
}

// natsHostPort extracts the listen address for the embedded server.
func natsHostPort(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("events.url: %w", err)
	}
	host := u.Hostname()
	if host == "" || host == "localhost" {
		host = "127.0.0.1"
	}
	if u.Port() == "" {
		return host, 4222, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, fmt.Errorf("events.url port: %w", err)
	}
	return host, port, nil
}

// newLogger converts the user-facing logging section.
func newLogger(cfg *config.Config, opts appOptions, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output.File = cfg.Logging.File
	lc.Output.OTEL = cfg.Telemetry.Enabled

	switch opts.sink {
	case sinkStderr:
		lc.Output.Stdout = false
		lc.Output.Stderr = true
	case sinkFile:
		lc.Output.Stdout = false
		if lc.Output.File == "" {
			lc.Output.File = opts.logFile
		}
	}
	return logging.NewLogger(lc, tel.LoggerProvider())
}

// newModelClient builds the configured provider, or the scripted offline
// client.
func newModelClient(mc config.ModelConfig, tracer trace.Tracer) (llm.Client, error) {
	if mc.Provider == config.ProviderOffline {
		return llm.Instrument(worker.NewOfflineClient(), config.ProviderOffline, tracer), nil
	}
	c, err := llm.New(llm.Config{
		Provider:    mc.Provider,
		Model:       mc.Name,
		BaseURL:     mc.BaseURL,
		APIKey:      mc.APIKey.Value(),
		Timeout:     mc.Timeout.Duration(),
		Temperature: llm.Temperature(mc.Temperature),
		MaxTokens:   mc.MaxTokens,
		RateLimit:   mc.RateLimit,
		Burst:       mc.Burst,
	})
	if err != nil {
		return nil, err
	}
	return llm.Instrument(c, c.Provider(), tracer), nil
}

// close releases resources in reverse order of creation.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.embedded != nil {
		a.embedded.Shutdown()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.telemetry.Shutdown(context.WithoutCancel(ctx)))
	if a.logger != nil {
		errs = append(errs, a.logger.Sync())
	}
	return errors.Join(errs...)
}
