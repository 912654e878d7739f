package campaign_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/compliance"
	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const bottlePrompt = "eco-friendly water bottle made with bamboo"

func newEngine(t *testing.T, text campaign.TextGenerator, images campaign.ImageGenerator, mutate func(*campaign.Config), opts ...campaign.Option) *campaign.Engine {
	t.Helper()
	cfg := campaign.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := campaign.NewEngine(text, images, cfg, opts...)
	require.NoError(t, err)
	return engine
}

func steps(report *campaign.Report) []string {
	out := make([]string, len(report.ExecutionLog))
	for i, e := range report.ExecutionLog {
		out[i] = fmt.Sprintf("%s:%s", e.Step, e.Outcome)
	}
	return out
}

func TestRun_ApprovedFirstTime(t *testing.T) {
	text := newScriptedText(
		[]reply{ok("Sip sustainably 🌿 Our bamboo bottle keeps water cool all day.")},
		[]reply{ok("APPROVED")},
	)
	images := &fakeImages{img: &imagegen.Image{Data: pngBytes, MIMEType: "image/png"}}
	engine := newEngine(t, text, images, nil, campaign.WithIDGenerator(func() string { return "a1" }))

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.Equal(t, 0, report.RetryCount)
	assert.True(t, report.Approved)
	assert.Equal(t, campaign.Approved, report.Outcome)
	assert.Equal(t, []string{"APPROVED"}, report.ReviewFeedback)
	assert.Empty(t, report.ComplianceFlags)
	assert.Equal(t, report.FinalApprovedText, report.FinalText)
	assert.Equal(t, []string{"writer:SUCCESS", "reviewer:SUCCESS", "art_director:SUCCESS"}, steps(report))

	assert.Equal(t, filepath.Join(engine.Config().OutputDir, "campaign_a1.png"), report.ImageReference)
	data, err := os.ReadFile(report.ImageReference)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestRun_NonCompliantTwiceThenCompliant(t *testing.T) {
	drafts := []string{
		"100% guaranteed hydration! 💧",
		"A miracle bottle for busy people ✨",
		"Bamboo-wrapped, keeps drinks cold for 24 hours 🌿",
	}
	// The reviewing model is down, so the rule-based checker judges each draft.
	text := newScriptedText(
		[]reply{ok(drafts[0]), ok(drafts[1]), ok(drafts[2])},
		[]reply{fail(llm.KindRateLimited)},
	)
	engine := newEngine(t, text, &fakeImages{img: &imagegen.Image{URL: "https://img.example/1.png"}}, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.Equal(t, 2, report.RetryCount)
	require.Len(t, report.ReviewFeedback, 3)
	assert.Equal(t, "APPROVED", report.ReviewFeedback[2])
	assert.True(t, report.Approved)
	assert.Equal(t, drafts[2], report.FinalApprovedText)
	assert.Equal(t, []compliance.Category{compliance.CategoryClaim, compliance.CategoryClaim}, report.ComplianceFlags)
	assert.Equal(t, "https://img.example/1.png", report.ImageReference)

	revisions := text.calls("writing")[1:]
	require.Len(t, revisions, 2)
	assert.Contains(t, revisions[0].Context, "'100%'")
	assert.Contains(t, revisions[0].Context, drafts[0])
	assert.Contains(t, revisions[1].Context, "'miracle'")
}

func TestRun_TextServiceDown(t *testing.T) {
	text := newScriptedText(
		[]reply{fail(llm.KindTransport)},
		[]reply{fail(llm.KindTimeout)},
	)
	engine := newEngine(t, text, nil, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.True(t, report.Approved)
	assert.Equal(t, 0, report.RetryCount)
	assert.Equal(t, []string{"APPROVED"}, report.ReviewFeedback)
	assert.Equal(t, campaign.FallbackDraft(bottlePrompt, false), report.FinalApprovedText)
	assert.Equal(t, []string{"writer:FALLBACK", "reviewer:FALLBACK", "art_director:FALLBACK"}, steps(report))
	assert.Equal(t, campaign.PlaceholderImage, report.ImageReference)
	assert.Equal(t, 3, report.Fallbacks())

	for _, e := range report.ExecutionLog {
		assert.NotEmpty(t, e.Detail, e.Step)
	}
}

func TestRun_NeverApproved(t *testing.T) {
	text := newScriptedText(
		[]reply{ok("Never worry again, 100% guaranteed! 🚀")},
		[]reply{fail(llm.KindAuth)},
	)
	images := &fakeImages{img: &imagegen.Image{Data: pngBytes}}
	engine := newEngine(t, text, images, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.False(t, report.Approved)
	assert.Equal(t, campaign.ForcedExit, report.Outcome)
	assert.Equal(t, campaign.DefaultMaxRetries, report.RetryCount)
	assert.Len(t, report.ReviewFeedback, campaign.DefaultMaxRetries+1)
	assert.NotEmpty(t, report.ImageReference)
	assert.Empty(t, report.FinalApprovedText)
	assert.Equal(t, "Never worry again, 100% guaranteed! 🚀", report.FinalText)

	// The image illustrates the last draft.
	assert.Contains(t, images.lastPrompt(), report.FinalText)
	assert.Len(t, report.ExecutionLog, 2*(campaign.DefaultMaxRetries+1)+1)
}

func TestRun_BoundedForAnyRetryBudget(t *testing.T) {
	for maxRetries := 0; maxRetries <= 5; maxRetries++ {
		t.Run(fmt.Sprintf("max_retries=%d", maxRetries), func(t *testing.T) {
			text := newScriptedText(
				[]reply{ok("Guaranteed miracle!")},
				[]reply{ok("[CLAIM] Remove 'guaranteed'")},
			)
			engine := newEngine(t, text, nil, func(c *campaign.Config) { c.MaxRetries = maxRetries })

			report, err := engine.Run(context.Background(), bottlePrompt)
			require.NoError(t, err)

			assert.LessOrEqual(t, report.RetryCount, maxRetries)
			assert.LessOrEqual(t, len(report.ExecutionLog), 2*(maxRetries+2)+1)
			assert.Equal(t, maxRetries+1, len(report.ReviewFeedback))
			assert.Equal(t, campaign.StepArtDirector, report.ExecutionLog[len(report.ExecutionLog)-1].Step)
		})
	}
}

func TestRun_ApprovalCapturesDraftAtVerdict(t *testing.T) {
	text := newScriptedText(
		[]reply{ok("first draft"), ok("second draft")},
		[]reply{ok("[TONE] Make it more energetic"), ok("Approved - nice")},
	)
	images := &fakeImages{img: &imagegen.Image{URL: "https://img.example/x.png"}}
	engine := newEngine(t, text, images, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.Equal(t, "second draft", report.FinalApprovedText)
	assert.Equal(t, []compliance.Category{compliance.CategoryTone}, report.ComplianceFlags)
	assert.Contains(t, images.lastPrompt(), "second draft")
	assert.Contains(t, images.lastPrompt(), bottlePrompt)
}

func TestRun_EmptyCompletionFallsBack(t *testing.T) {
	text := newScriptedText(
		[]reply{ok("   ")},
		[]reply{ok("")},
	)
	engine := newEngine(t, text, nil, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)
	assert.Equal(t, []string{"writer:FALLBACK", "reviewer:FALLBACK", "art_director:FALLBACK"}, steps(report))
}

func TestRun_RevisionUsesRevisionTemplate(t *testing.T) {
	text := newScriptedText(
		[]reply{fail(llm.KindTransport)},
		[]reply{ok("[CLARITY] Say what the bottle does"), ok("APPROVED")},
	)
	engine := newEngine(t, text, nil, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RetryCount)
	assert.Equal(t, campaign.FallbackDraft(bottlePrompt, true), report.FinalApprovedText)
	assert.Equal(t, "copy_revision", report.ExecutionLog[2].Action)
}

func TestRun_LogInvariants(t *testing.T) {
	text := newScriptedText(
		[]reply{ok("draft")},
		[]reply{ok("[OTHER] Add a call to action"), ok("[OTHER] Shorter"), ok("APPROVED")},
	)
	engine := newEngine(t, text, nil, nil)

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	writers, reviewers := 0, 0
	for i, e := range report.ExecutionLog {
		assert.Equal(t, i+1, e.Iteration)
		assert.False(t, e.Timestamp.IsZero())
		switch e.Step {
		case campaign.StepWriter:
			writers++
		case campaign.StepReviewer:
			reviewers++
		}
	}
	assert.Equal(t, report.RetryCount+1, writers)
	assert.Equal(t, len(report.ReviewFeedback), reviewers)
	assert.Equal(t, len(report.ReviewFeedback)-1, len(report.ComplianceFlags))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	text := newScriptedText([]reply{ok("draft")}, []reply{ok("APPROVED")})
	text.onCall = func(capability string, _ int) {
		if capability == "writing" {
			cancel()
		}
	}
	images := &fakeImages{img: &imagegen.Image{URL: "https://img.example/x.png"}}
	engine := newEngine(t, text, images, nil)

	report, err := engine.Run(ctx, bottlePrompt)
	require.NoError(t, err)

	assert.Equal(t, campaign.Cancelled, report.Outcome)
	assert.False(t, report.Approved)
	assert.Empty(t, report.ImageReference)
	assert.Equal(t, []string{"writer:SUCCESS"}, steps(report))
	assert.Empty(t, images.prompts)
}

func TestRun_UnknownDecisionIsInvariantError(t *testing.T) {
	text := newScriptedText([]reply{ok("draft")}, []reply{ok("APPROVED")})
	obs := &recordingObserver{}
	engine := newEngine(t, text, nil, nil,
		campaign.WithRouter(func(string, int, int) campaign.Decision { return campaign.Decision(99) }),
		campaign.WithObserver(obs))

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, campaign.ErrInvariant)

	var inv *campaign.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, campaign.PhaseReviewing, inv.Phase)
	assert.Contains(t, inv.Reason, "99")

	assert.Equal(t, 1, obs.finishes)
	assert.ErrorIs(t, obs.errs[0], campaign.ErrInvariant)
}

func TestRun_RouterThatNeverStopsHitsInvariant(t *testing.T) {
	text := newScriptedText([]reply{ok("draft")}, []reply{ok("APPROVED")})
	engine := newEngine(t, text, nil, nil,
		campaign.WithRouter(func(string, int, int) campaign.Decision { return campaign.ReviseWriter }))

	_, err := engine.Run(context.Background(), bottlePrompt)
	assert.ErrorIs(t, err, campaign.ErrInvariant)
}

func TestRun_StepCeiling(t *testing.T) {
	text := newScriptedText([]reply{ok("draft")}, []reply{ok("[CLAIM] nope")})
	engine := newEngine(t, text, nil, func(c *campaign.Config) { c.MaxSteps = 2 })

	_, err := engine.Run(context.Background(), bottlePrompt)
	require.ErrorIs(t, err, campaign.ErrInvariant)
	assert.Contains(t, err.Error(), "step ceiling 2")
}

func TestRun_ObserversSeeEveryStep(t *testing.T) {
	text := newScriptedText([]reply{ok("draft")}, []reply{ok("[TONE] more energy"), ok("APPROVED")})
	obs := &recordingObserver{}
	engine := newEngine(t, text, nil, nil, campaign.WithObserver(obs))

	report, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	require.Len(t, obs.steps, len(report.ExecutionLog))
	nexts := make([]campaign.Phase, len(obs.steps))
	for i, ev := range obs.steps {
		assert.Equal(t, report.ID, ev.CampaignID)
		assert.Equal(t, report.ExecutionLog[i], ev.Entry)
		nexts[i] = ev.Next
	}
	assert.Equal(t, []campaign.Phase{
		campaign.PhaseReviewing,
		campaign.PhaseRevising,
		campaign.PhaseReviewing,
		campaign.PhaseImageGenerating,
		campaign.PhaseDone,
	}, nexts)

	require.Equal(t, 1, obs.finishes)
	if diff := cmp.Diff(report, obs.reports[0]); diff != "" {
		t.Errorf("observer report mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CampaignIDReachesTextPort(t *testing.T) {
	var seen []string
	text := captureCtx(func(ctx context.Context) { seen = append(seen, llm.CampaignIDFrom(ctx)) })
	engine := newEngine(t, text, nil, nil, campaign.WithIDGenerator(func() string { return "camp-42" }))

	_, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	for _, id := range seen {
		assert.Equal(t, "camp-42", id)
	}
}

type captureCtx func(ctx context.Context)

func (c captureCtx) GenerateText(ctx context.Context, req campaign.TextRequest) (string, error) {
	c(ctx)
	if req.Params.Capability == "reviewing" {
		return "APPROVED", nil
	}
	return "Bamboo bottle, cool water all day", nil
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	text := newScriptedText([]reply{ok("draft")}, []reply{ok("APPROVED")})
	engine := newEngine(t, text, nil, nil, campaign.WithTracerProvider(tp))

	_, err := engine.Run(context.Background(), bottlePrompt)
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"campaign.writer", "campaign.reviewer", "campaign.art_director", "campaign"}, names)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := campaign.DefaultConfig()
	cfg.MaxRetries = -1
	_, err := campaign.NewEngine(nil, nil, cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "max_retries"))
}

func TestRun_ConcurrentCampaignsAreIndependent(t *testing.T) {
	text := newScriptedText([]reply{ok("Bamboo bottle, cool water all day")}, []reply{ok("APPROVED")})
	engine := newEngine(t, text, nil, nil)

	results := make(chan *campaign.Report, 8)
	for i := range 8 {
		go func() {
			r, err := engine.Run(context.Background(), fmt.Sprintf("product %d", i))
			assert.NoError(t, err)
			results <- r
		}()
	}

	ids := map[string]bool{}
	for range 8 {
		r := <-results
		require.NotNil(t, r)
		assert.Len(t, r.ExecutionLog, 3)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 8)
}
