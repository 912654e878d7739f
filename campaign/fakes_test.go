package campaign_test

import (
	"context"
	"sync"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
)

// reply is one scripted text generation result.
type reply struct {
	text string
	err  error
}

func ok(text string) reply { return reply{text: text} }

func fail(kind llm.ErrorKind) reply {
	return reply{err: llm.NewServiceError(kind, context.DeadlineExceeded)}
}

// scriptedText answers writer and reviewer calls from separate scripts,
// keyed by capability. The last reply of a script repeats once exhausted.
type scriptedText struct {
	mu       sync.Mutex
	scripts  map[string][]reply
	requests map[string][]campaign.TextRequest
	onCall   func(capability string, n int)
}

func newScriptedText(writer, reviewer []reply) *scriptedText {
	return &scriptedText{
		scripts: map[string][]reply{
			"writing":   writer,
			"reviewing": reviewer,
		},
		requests: make(map[string][]campaign.TextRequest),
	}
}

func (s *scriptedText) GenerateText(_ context.Context, req campaign.TextRequest) (string, error) {
	s.mu.Lock()
	capability := req.Params.Capability
	n := len(s.requests[capability])
	s.requests[capability] = append(s.requests[capability], req)
	script := s.scripts[capability]
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook(capability, n)
	}

	if len(script) == 0 {
		return "", llm.NewServiceError(llm.KindTransport, context.Canceled)
	}
	r := script[min(n, len(script)-1)]
	return r.text, r.err
}

func (s *scriptedText) calls(capability string) []campaign.TextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]campaign.TextRequest(nil), s.requests[capability]...)
}

// fakeImages returns a fixed image and records prompts.
type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	img     *imagegen.Image
	err     error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (*imagegen.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func (f *fakeImages) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// recordingObserver keeps every event.
type recordingObserver struct {
	mu       sync.Mutex
	steps    []campaign.StepEvent
	reports  []*campaign.Report
	errs     []error
	finishes int
}

func (r *recordingObserver) OnStep(_ context.Context, ev campaign.StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, ev)
}

func (r *recordingObserver) OnFinish(_ context.Context, report *campaign.Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes++
	r.reports = append(r.reports, report)
	r.errs = append(r.errs, err)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
