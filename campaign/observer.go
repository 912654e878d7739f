package campaign

import (
	"context"
	"log/slog"
)

// StepEvent describes a folded step.
type StepEvent struct {
	CampaignID string
	Entry      LogEntry

	// Next is the phase the engine moves to after this step.
	Next       Phase
	RetryCount int
	Approved   bool
}

// Observer receives engine progress. Implementations must be safe for
// concurrent use when campaigns run in parallel and must not block for long;
// they run on the campaign goroutine.
type Observer interface {
	// OnStep is called after each step update is folded into the state.
	OnStep(ctx context.Context, ev StepEvent)

	// OnFinish is called once per campaign. report is nil when err is set.
	OnFinish(ctx context.Context, report *Report, err error)
}

// LoggingObserver writes engine progress to a slog logger.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a LoggingObserver. A nil logger uses slog.Default().
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnStep logs the step at info level, or warn when it fell back.
func (o *LoggingObserver) OnStep(ctx context.Context, ev StepEvent) {
	level := slog.LevelInfo
	if ev.Entry.Outcome == OutcomeFallback {
		level = slog.LevelWarn
	}
	o.logger.Log(ctx, level, "Campaign step completed",
		"campaign_id", ev.CampaignID,
		"step", ev.Entry.Step,
		"action", ev.Entry.Action,
		"outcome", ev.Entry.Outcome,
		"iteration", ev.Entry.Iteration,
		"retry_count", ev.RetryCount,
		"next", ev.Next)
}

// OnFinish logs the campaign result.
func (o *LoggingObserver) OnFinish(ctx context.Context, report *Report, err error) {
	if err != nil {
		o.logger.ErrorContext(ctx, "Campaign aborted", "error", err)
		return
	}
	o.logger.InfoContext(ctx, "Campaign finished",
		"campaign_id", report.ID,
		"outcome", report.Outcome,
		"approved", report.Approved,
		"retry_count", report.RetryCount,
		"fallbacks", report.Fallbacks(),
		"duration", report.Duration)
}
