package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/compliance"
	"github.com/c360studio/adpilot/llm"
	"github.com/c360studio/adpilot/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, startedAt time.Time) *campaign.Report {
	return &campaign.Report{
		ID:                id,
		Prompt:            "Eco-friendly water bottle",
		FinalText:         "Sip sustainably.",
		FinalApprovedText: "Sip sustainably.",
		ImageReference:    "output/campaign_" + id + ".png",
		Approved:          true,
		Outcome:           campaign.Approved,
		RetryCount:        1,
		ReviewFeedback:    []string{"[CLAIM] Remove '100%'", "APPROVED"},
		ComplianceFlags:   []compliance.Category{compliance.CategoryClaim},
		ExecutionLog: []campaign.LogEntry{
			{Timestamp: startedAt, Step: campaign.StepWriter, Action: "copy_generation", Outcome: campaign.OutcomeSuccess, Iteration: 1, ResultLength: 30},
			{Timestamp: startedAt, Step: campaign.StepReviewer, Action: "compliance_check", Outcome: campaign.OutcomeFallback, Iteration: 2, ResultLength: 21, Detail: "transport: down"},
		},
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := storage.Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpenTwiceKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := storage.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveReport(ctx, sampleReport("c1", time.Now())))
	require.NoError(t, s.Close())

	s, err = storage.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
}

func TestSaveAndGetReport(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	started := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	want := sampleReport("c1", started)

	require.NoError(t, s.SaveReport(ctx, want))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, want.Prompt, got.Prompt)
	assert.Equal(t, want.FinalApprovedText, got.FinalApprovedText)
	assert.Equal(t, want.ImageReference, got.ImageReference)
	assert.True(t, got.Approved)
	assert.Equal(t, campaign.Approved, got.Outcome)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, want.ReviewFeedback, got.ReviewFeedback)
	assert.Equal(t, want.ComplianceFlags, got.ComplianceFlags)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, want.Duration, got.Duration)
	require.Len(t, got.ExecutionLog, 2)
	assert.Equal(t, want.ExecutionLog[1], got.ExecutionLog[1])
}

func TestSaveReportReplaces(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	r := sampleReport("c1", time.Now())
	require.NoError(t, s.SaveReport(ctx, r))

	r.ImageReference = campaign.PlaceholderImage
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, campaign.PlaceholderImage, got.ImageReference)
	assert.Len(t, got.ExecutionLog, 2)
}

func TestGetCampaignNotFound(t *testing.T) {
	s := openTempStore(t)

	_, err := s.GetCampaign(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListCampaignsNewestFirst(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.SaveReport(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.ListCampaigns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, campaign.Approved, got[0].Outcome)

	all, err := s.ListCampaigns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestObserverStoresStepsAndReport(t *testing.T) {
	s := openTempStore(t)
	ctx := llm.WithCampaignID(context.Background(), "c1")
	r := sampleReport("c1", time.Now())

	for _, e := range r.ExecutionLog {
		s.OnStep(ctx, campaign.StepEvent{CampaignID: "c1", Entry: e})
	}
	s.OnFinish(ctx, r, nil)

	got, err := s.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, got.ExecutionLog, 2)
	assert.Equal(t, campaign.Approved, got.Outcome)
}

func TestObserverMarksAborted(t *testing.T) {
	s := openTempStore(t)
	ctx, cancel := context.WithCancel(llm.WithCampaignID(context.Background(), "c9"))
	cancel()

	s.OnStep(ctx, campaign.StepEvent{CampaignID: "c9", Entry: campaign.LogEntry{
		Timestamp: time.Now(), Step: campaign.StepWriter, Action: "copy_generation",
		Outcome: campaign.OutcomeSuccess, Iteration: 1,
	}})
	s.OnFinish(ctx, nil, &campaign.InvariantError{CampaignID: "c9", Phase: campaign.PhaseReviewing, Reason: "step ceiling"})

	list, err := s.ListCampaigns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, storage.OutcomeAborted, list[0].Outcome)
	assert.Contains(t, list[0].Error, "step ceiling")

	got, err := s.GetCampaign(context.Background(), "c9")
	require.NoError(t, err)
	assert.Len(t, got.ExecutionLog, 1)
}

func TestRecordCallAndQuery(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

	ok := &llm.CallRecord{
		RequestID:    "r1",
		CampaignID:   "c1",
		Capability:   "writing",
		Model:        "llama-3.1-8b-instant",
		Provider:     "groq",
		Messages:     []llm.Message{{Role: "system", Content: "write"}, {Role: "user", Content: "bottle"}},
		Response:     "Sip sustainably.",
		TotalTokens:  42,
		FinishReason: "stop",
		StartedAt:    start,
		CompletedAt:  start.Add(time.Second),
		DurationMs:   1000,
		Retries:      1,
	}
	failed := &llm.CallRecord{
		RequestID:     "r2",
		CampaignID:    "c1",
		Capability:    "reviewing",
		StartedAt:     start.Add(2 * time.Second),
		CompletedAt:   start.Add(3 * time.Second),
		Error:         "auth: groq API error (status 401)",
		ErrorKind:     llm.KindAuth,
		FallbacksUsed: []string{"groq-review", "openai-review"},
	}
	other := &llm.CallRecord{RequestID: "r3", CampaignID: "c2", Capability: "writing", StartedAt: start, CompletedAt: start}

	for _, rec := range []*llm.CallRecord{ok, failed, other} {
		require.NoError(t, s.RecordCall(ctx, rec))
	}

	calls, err := s.CallsForCampaign(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "r1", calls[0].RequestID)
	assert.Equal(t, ok.Messages, calls[0].Messages)
	assert.Equal(t, 42, calls[0].TotalTokens)
	assert.Equal(t, start, calls[0].StartedAt)
	assert.Equal(t, llm.KindAuth, calls[1].ErrorKind)
	assert.Equal(t, failed.FallbacksUsed, calls[1].FallbacksUsed)

	stats, err := s.StatsForCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, storage.CallStats{Calls: 2, Failed: 1, TotalTokens: 42, TotalRetries: 1}, stats)
}

func TestRecordCallDuplicate(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	rec := &llm.CallRecord{RequestID: "r1", Capability: "writing", StartedAt: time.Now(), CompletedAt: time.Now()}

	require.NoError(t, s.RecordCall(ctx, rec))
	err := s.RecordCall(ctx, rec)
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists), "got %v", err)
}

func TestRecordCallRequiresID(t *testing.T) {
	s := openTempStore(t)
	require.Error(t, s.RecordCall(context.Background(), &llm.CallRecord{}))
}
