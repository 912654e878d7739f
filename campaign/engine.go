// Package campaign runs the writer, reviewer and art director steps of an ad
// campaign as a bounded state machine. External services sit behind the
// TextGenerator and ImageGenerator ports; every service failure is converted
// into a step fallback, so a campaign only fails on a workflow defect.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/c360studio/adpilot/campaign"

// Engine runs campaigns. It holds no per-campaign state, so one engine may
// run several campaigns concurrently.
type Engine struct {
	cfg       Config
	writer    *Writer
	reviewer  *Reviewer
	art       *ArtDirector
	route     RouteFunc
	observers []Observer
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	store     ImageStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its steps.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver registers an observer. Observers are called in order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// WithImageStore overrides where image bytes are written. The default is an
// imagegen.FileStore rooted at Config.OutputDir.
func WithImageStore(s ImageStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithRouter replaces the routing function.
func WithRouter(r RouteFunc) Option {
	return func(e *Engine) {
		e.route = r
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets the campaign ID source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine creates an engine. text and images may be nil; the affected
// steps then always use their fallbacks.
func NewEngine(text TextGenerator, images ImageGenerator, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid campaign config: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		route:  Route,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = imagegen.NewFileStore(cfg.OutputDir)
	}

	e.writer = NewWriter(text, cfg.Writer, e.logger)
	e.reviewer = NewReviewer(text, cfg.Reviewer, e.logger)
	e.art = NewArtDirector(images, e.store, cfg.Image.Style, e.logger)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run executes one campaign for prompt. The returned error is always an
// *InvariantError; service failures show up as fallbacks in the report.
// Cancelling ctx stops the campaign before the next step and returns a
// report with outcome Cancelled.
func (e *Engine) Run(ctx context.Context, prompt string) (*Report, error) {
	state := newState(e.newID(), prompt, e.now())
	ctx = llm.WithCampaignID(ctx, state.ID)

	ctx, span := e.tracer.Start(ctx, "campaign",
		trace.WithAttributes(
			attribute.String("campaign.id", state.ID),
			attribute.Int("campaign.max_retries", e.cfg.MaxRetries),
		))
	defer span.End()

	e.logger.Info("Campaign started",
		"campaign_id", state.ID,
		"max_retries", e.cfg.MaxRetries)

	report, err := e.run(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.finish(ctx, nil, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("campaign.outcome", string(report.Outcome)),
		attribute.Int("campaign.retry_count", report.RetryCount),
	)
	e.finish(ctx, report, nil)
	return report, nil
}

func (e *Engine) run(ctx context.Context, state *State) (*Report, error) {
	ceiling := e.cfg.StepCeiling()
	phase := PhaseDrafting
	cancelled := false

	for phase != PhaseDone {
		if ctx.Err() != nil {
			e.logger.Info("Campaign cancelled",
				"campaign_id", state.ID,
				"phase", phase,
				"error", ctx.Err())
			cancelled = true
			break
		}

		if phase == PhaseRevising {
			phase = PhaseDrafting
			continue
		}

		if state.IterationCount >= ceiling {
			return nil, &InvariantError{
				CampaignID: state.ID,
				Phase:      phase,
				Reason:     fmt.Sprintf("step ceiling %d reached", ceiling),
			}
		}

		u, err := e.runStep(ctx, phase, state)
		if err != nil {
			return nil, err
		}
		if err := state.apply(u, e.now()); err != nil {
			return nil, &InvariantError{CampaignID: state.ID, Phase: phase, Reason: err.Error()}
		}

		next, err := e.next(phase, state)
		if err != nil {
			return nil, err
		}

		e.notifyStep(ctx, StepEvent{
			CampaignID: state.ID,
			Entry:      state.ExecutionLog[len(state.ExecutionLog)-1],
			Next:       next,
			RetryCount: state.RetryCount,
			Approved:   state.Approved,
		})
		phase = next
	}

	outcome := ForcedExit
	switch {
	case cancelled:
		outcome = Cancelled
	case state.Approved:
		outcome = Approved
	}
	return state.report(outcome, e.now()), nil
}

// runStep executes the step for phase inside a span.
func (e *Engine) runStep(ctx context.Context, phase Phase, state *State) (Update, error) {
	var step StepName
	switch phase {
	case PhaseDrafting:
		step = StepWriter
	case PhaseReviewing:
		step = StepReviewer
	case PhaseImageGenerating:
		step = StepArtDirector
	default:
		return Update{}, &InvariantError{CampaignID: state.ID, Phase: phase, Reason: "no step for phase"}
	}

	ctx, span := e.tracer.Start(ctx, "campaign."+string(step),
		trace.WithAttributes(attribute.Int("campaign.iteration", state.IterationCount+1)))
	defer span.End()

	var u Update
	switch step {
	case StepWriter:
		u = e.writer.Run(ctx, state)
	case StepReviewer:
		u = e.reviewer.Run(ctx, state)
	case StepArtDirector:
		u = e.art.Run(ctx, state)
	}

	span.SetAttributes(attribute.String("campaign.step.outcome", string(u.Entry.Outcome)))
	if u.Entry.Detail != "" {
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("error", u.Entry.Detail)))
	}
	return u, nil
}

// next returns the phase that follows a completed step.
func (e *Engine) next(phase Phase, state *State) (Phase, error) {
	switch phase {
	case PhaseDrafting:
		if state.RetryCount > e.cfg.MaxRetries {
			return "", &InvariantError{
				CampaignID: state.ID,
				Phase:      phase,
				Reason:     fmt.Sprintf("retry count %d exceeds max %d", state.RetryCount, e.cfg.MaxRetries),
			}
		}
		return PhaseReviewing, nil

	case PhaseReviewing:
		// attempts counts drafts written so far, first draft included.
		decision := e.route(state.LatestFeedback(), state.RetryCount+1, e.cfg.MaxRetries)
		switch decision {
		case ReviseWriter:
			return PhaseRevising, nil
		case GenerateImage:
			if !state.Approved {
				e.logger.Warn("Retry limit reached, generating image for unapproved draft",
					"campaign_id", state.ID,
					"retry_count", state.RetryCount)
			}
			return PhaseImageGenerating, nil
		default:
			return "", &InvariantError{
				CampaignID: state.ID,
				Phase:      phase,
				Reason:     fmt.Sprintf("unknown router decision %d", int(decision)),
			}
		}

	case PhaseImageGenerating:
		return PhaseDone, nil
	}

	return "", &InvariantError{CampaignID: state.ID, Phase: phase, Reason: "no transition"}
}

func (e *Engine) notifyStep(ctx context.Context, ev StepEvent) {
	for _, o := range e.observers {
		o.OnStep(ctx, ev)
	}
}

func (e *Engine) finish(ctx context.Context, report *Report, err error) {
	for _, o := range e.observers {
		o.OnFinish(ctx, report, err)
	}
}
