// Package telemetry exposes campaign and LLM call metrics in Prometheus
// format. Metrics is both a campaign.Observer and an llm.CallRecorder.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adpilot"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	campaigns   *prometheus.CounterVec
	aborted     prometheus.Counter
	steps       *prometheus.CounterVec
	retries     prometheus.Histogram
	duration    prometheus.Histogram
	llmCalls    *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmRetries  prometheus.Counter
	llmFallback prometheus.Counter
}

// NewMetrics creates and registers the collectors. Go runtime and process
// collectors are included so /metrics is useful on its own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		campaigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_total",
			Help:      "Finished campaigns by outcome.",
		}, []string{"outcome"}),
		aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_aborted_total",
			Help:      "Campaigns stopped by a workflow invariant error.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_steps_total",
			Help:      "Executed steps by step name and outcome (SUCCESS or FALLBACK).",
		}, []string{"step", "outcome"}),
		retries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_retries",
			Help:      "Writer revisions per finished campaign.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_duration_seconds",
			Help:      "Wall time of finished campaigns.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM completion calls by capability, provider and result kind.",
		}, []string{"capability", "provider", "result"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by capability and direction.",
		}, []string{"capability", "direction"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call latency including retries and fallbacks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"capability"}),
		llmRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Retry attempts across all LLM calls.",
		}),
		llmFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_endpoint_fallbacks_total",
			Help:      "Endpoints abandoned for the next one in a fallback chain.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.campaigns, m.aborted, m.steps, m.retries, m.duration,
		m.llmCalls, m.llmTokens, m.llmLatency, m.llmRetries, m.llmFallback,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnStep counts the step.
func (m *Metrics) OnStep(_ context.Context, ev campaign.StepEvent) {
	m.steps.WithLabelValues(string(ev.Entry.Step), string(ev.Entry.Outcome)).Inc()
}

// OnFinish counts the campaign by outcome.
func (m *Metrics) OnFinish(_ context.Context, report *campaign.Report, err error) {
	if err != nil {
		m.aborted.Inc()
		return
	}
	if report == nil {
		return
	}
	m.campaigns.WithLabelValues(string(report.Outcome)).Inc()
	m.retries.Observe(float64(report.RetryCount))
	m.duration.Observe(report.Duration.Seconds())
}

// RecordCall counts an LLM call. It never fails.
func (m *Metrics) RecordCall(_ context.Context, rec *llm.CallRecord) error {
	result := "success"
	if rec.Error != "" {
		result = string(rec.ErrorKind)
	}
	m.llmCalls.WithLabelValues(rec.Capability, rec.Provider, result).Inc()
	m.llmTokens.WithLabelValues(rec.Capability, "prompt").Add(float64(rec.PromptTokens))
	m.llmTokens.WithLabelValues(rec.Capability, "completion").Add(float64(rec.CompletionTokens))
	m.llmLatency.WithLabelValues(rec.Capability).Observe(float64(rec.DurationMs) / 1000)
	m.llmRetries.Add(float64(rec.Retries))
	m.llmFallback.Add(float64(len(rec.FallbacksUsed)))
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var (
	_ campaign.Observer = (*Metrics)(nil)
	_ llm.CallRecorder  = (*Metrics)(nil)
)
