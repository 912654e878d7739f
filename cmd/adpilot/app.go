package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/c360studio/adpilot/brief"
	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/config"
	"github.com/c360studio/adpilot/events"
	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
	"github.com/c360studio/adpilot/model"
	"github.com/c360studio/adpilot/output"
	"github.com/c360studio/adpilot/storage"
	"github.com/c360studio/adpilot/telemetry"
)

// App wires configuration, service clients, history, events and metrics
// into a campaign engine.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *model.Registry

	engine *campaign.Engine
	briefs *brief.Loader

	// History
	store *storage.Store

	// NATS
	bus *events.Bus

	// Telemetry
	metrics         *telemetry.Metrics
	stopMetrics     context.CancelFunc
	metricsDone     chan error
	shutdownTracing func(context.Context) error
}

// NewApp builds every component described by cfg. Credential and provider
// problems are reported here as config errors, before any campaign starts.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	registry := cfg.Registry()
	if err := cfg.CheckCredentials(creds, registry); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		briefs:   brief.NewLoader(brief.WithLogger(logger)),
		metrics:  telemetry.NewMetrics(),
	}

	if err := a.start(ctx, creds); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) start(ctx context.Context, creds *config.Credentials) error {
	observers := []campaign.Observer{campaign.NewLoggingObserver(a.logger), a.metrics}
	recorders := llm.MultiRecorder{a.metrics}

	if path := a.cfg.HistoryPath(); path != "" {
		store, err := storage.Open(ctx, path, storage.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		a.store = store
		observers = append(observers, store)
		recorders = append(recorders, store)
	}

	if a.cfg.NATS.Enabled() {
		bus, err := events.Connect(ctx, events.Options{
			URL:           a.cfg.NATS.URL,
			Embedded:      a.cfg.NATS.Embedded,
			StoreDir:      filepath.Join(a.cfg.Campaign.OutputDir, "nats"),
			Stream:        a.cfg.NATS.Stream,
			SubjectPrefix: a.cfg.NATS.SubjectPrefix,
			Logger:        a.logger,
		})
		if err != nil {
			return err
		}
		a.bus = bus
		observers = append(observers, events.NewPublisher(bus.Conn(),
			events.WithSubjectPrefix(a.cfg.NATS.SubjectPrefix),
			events.WithLogger(a.logger)))
	}

	tp, shutdown, err := telemetry.SetupTracing(ctx, a.cfg.Tracing.Endpoint, a.cfg.Tracing.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	a.shutdownTracing = shutdown

	if a.cfg.Metrics.Addr != "" {
		a.serveMetrics(ctx)
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = a.cfg.LLM.MaxAttempts
	client := llm.NewClient(a.registry,
		llm.WithLogger(a.logger),
		llm.WithRetryConfig(retry),
		llm.WithHTTPClient(&http.Client{Timeout: a.cfg.LLM.Timeout}),
		llm.WithMaxConcurrent(a.cfg.LLM.MaxConcurrent),
		llm.WithCallRecorder(recorders),
	)

	images, err := newImageGenerator(ctx, a.cfg, creds, a.logger)
	if err != nil {
		return err
	}

	opts := []campaign.Option{
		campaign.WithLogger(a.logger),
		campaign.WithTracerProvider(tp),
		campaign.WithImageStore(imagegen.NewFileStore(a.cfg.Campaign.OutputDir)),
	}
	for _, o := range observers {
		opts = append(opts, campaign.WithObserver(o))
	}

	engine, err := campaign.NewEngine(campaign.NewLLMText(client), images, a.cfg.Campaign, opts...)
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

// serveMetrics exposes /metrics until Close.
func (a *App) serveMetrics(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopMetrics = cancel
	a.metricsDone = make(chan error, 1)

	go func() {
		a.logger.Info("Serving metrics", "addr", a.cfg.Metrics.Addr)
		a.metricsDone <- a.metrics.Serve(ctx, a.cfg.Metrics.Addr)
	}()
}

// OpenAI images API defaults, used when image.provider is openai.
const (
	openAIImagesURL  = "https://api.openai.com/v1"
	openAIImageModel = "dall-e-3"
)

// newImageGenerator returns the configured image backend, or nil when the
// provider is "none" and the art director should always use its placeholder.
func newImageGenerator(ctx context.Context, cfg *config.Config, creds *config.Credentials, logger *slog.Logger) (campaign.ImageGenerator, error) {
	ic := cfg.Image
	switch ic.Provider {
	case config.ImageProviderNone:
		return nil, nil

	case config.ImageProviderGenAI:
		gen, err := imagegen.NewGenAIGenerator(ctx, imagegen.GenAIConfig{
			APIKey:      creds.GoogleAPIKey,
			Model:       ic.Model,
			AspectRatio: ic.AspectRatio,
			BaseURL:     ic.BaseURL,
			HTTPClient:  &http.Client{Timeout: ic.Timeout},
			Logger:      logger,
		})
		if err != nil {
			return nil, &config.ConfigError{Key: "image", Problem: err.Error()}
		}
		return gen, nil

	case config.ImageProviderTogether, config.ImageProviderOpenAI:
		opts := []imagegen.HTTPOption{
			imagegen.WithSize(ic.Width, ic.Height),
			imagegen.WithSteps(ic.Steps),
			imagegen.WithHTTPClient(&http.Client{Timeout: ic.Timeout}),
			imagegen.WithLogger(logger),
			imagegen.WithAPIKey(creds.Lookup(cfg.ImageKeyEnv())),
		}
		if ic.Provider == config.ImageProviderOpenAI {
			opts = append(opts, imagegen.WithBaseURL(openAIImagesURL), imagegen.WithModel(openAIImageModel))
		}
		if ic.BaseURL != "" {
			opts = append(opts, imagegen.WithBaseURL(ic.BaseURL))
		}
		if ic.Model != "" {
			opts = append(opts, imagegen.WithModel(ic.Model))
		}
		return imagegen.NewHTTPGenerator(opts...), nil
	}

	return nil, &config.ConfigError{Key: "image.provider", Problem: fmt.Sprintf("unknown provider %q", ic.Provider)}
}

// Engine returns the campaign engine.
func (a *App) Engine() *campaign.Engine {
	return a.engine
}

// Store returns the history store, nil when history is disabled.
func (a *App) Store() *storage.Store {
	return a.store
}

// LoadBrief resolves a brief from text, a file path or a URL.
func (a *App) LoadBrief(ctx context.Context, input string) (*brief.Brief, error) {
	return a.briefs.Load(ctx, input)
}

// RunCampaign runs one campaign and, when save is set, writes its markdown
// report next to the generated image.
func (a *App) RunCampaign(ctx context.Context, b *brief.Brief, save bool) (*campaign.Report, error) {
	a.logger.Info("Running campaign",
		"source", b.Source,
		"origin", b.Origin,
		"prompt_chars", len(b.Prompt))

	report, err := a.engine.Run(ctx, b.Prompt)
	if err != nil {
		return nil, err
	}

	if save {
		path, err := output.WriteMarkdown(a.cfg.Campaign.OutputDir, report)
		if err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
		a.logger.Info("Saved report", "campaign_id", report.ID, "path", path)
	}
	return report, nil
}

// Close stops the metrics server, closes NATS and history, and flushes
// pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
