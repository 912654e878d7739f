package campaign

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/c360studio/adpilot/compliance"
)

// Phase is a workflow engine state.
type Phase string

const (
	PhaseStart           Phase = "start"
	PhaseDrafting        Phase = "drafting"
	PhaseReviewing       Phase = "reviewing"
	PhaseRevising        Phase = "revising"
	PhaseImageGenerating Phase = "image_generating"
	PhaseDone            Phase = "done"
)

// StepName identifies the step that produced an update.
type StepName string

const (
	StepWriter      StepName = "writer"
	StepReviewer    StepName = "reviewer"
	StepArtDirector StepName = "art_director"
)

// StepOutcome records whether a step used its external service or fell back.
type StepOutcome string

const (
	OutcomeSuccess  StepOutcome = "SUCCESS"
	OutcomeFallback StepOutcome = "FALLBACK"
)

// LogEntry is one line of the execution audit log.
type LogEntry struct {
	Timestamp    time.Time   `json:"timestamp"`
	Step         StepName    `json:"step"`
	Action       string      `json:"action"`
	Outcome      StepOutcome `json:"outcome"`
	Iteration    int         `json:"iteration"`
	ResultLength int         `json:"result_length"`

	// Detail carries the error that caused a fallback, if any.
	Detail string `json:"detail,omitempty"`
}

// State is the working record of a single campaign. It is owned by one
// Engine.Run call and only changed through apply.
type State struct {
	ID        string
	Prompt    string
	StartedAt time.Time

	DraftText         string
	ReviewFeedback    []string
	FinalApprovedText string
	ImageReference    string

	// RetryCount counts writer revisions; the first draft is not a retry.
	RetryCount int

	// IterationCount counts folded step updates.
	IterationCount int

	ComplianceFlags []compliance.Category
	Approved        bool
	ExecutionLog    []LogEntry
}

func newState(id, prompt string, startedAt time.Time) *State {
	return &State{
		ID:        id,
		Prompt:    prompt,
		StartedAt: startedAt,
	}
}

// LatestFeedback returns the most recent reviewer feedback, or "".
func (s *State) LatestFeedback() string {
	if len(s.ReviewFeedback) == 0 {
		return ""
	}
	return s.ReviewFeedback[len(s.ReviewFeedback)-1]
}

// Update is the result of one step. Steps never touch State directly; the
// engine folds each Update in with apply.
type Update struct {
	Step StepName

	// Writer fields.
	Draft    string
	Revision bool

	// Reviewer fields.
	Feedback string
	Approved bool

	// Art director field.
	ImageReference string

	Entry LogEntry
}

// apply folds u into the state and appends its log entry.
func (s *State) apply(u Update, at time.Time) error {
	switch u.Step {
	case StepWriter:
		s.DraftText = u.Draft
		if u.Revision {
			s.RetryCount++
		}
	case StepReviewer:
		s.ReviewFeedback = append(s.ReviewFeedback, u.Feedback)
		if u.Approved {
			if !s.Approved {
				s.Approved = true
				s.FinalApprovedText = s.DraftText
			}
		} else {
			s.ComplianceFlags = append(s.ComplianceFlags, compliance.CategoryOf(u.Feedback))
		}
	case StepArtDirector:
		if s.ImageReference != "" {
			return fmt.Errorf("image reference already set")
		}
		s.ImageReference = u.ImageReference
	default:
		return fmt.Errorf("unknown step %q", u.Step)
	}

	s.IterationCount++

	entry := u.Entry
	entry.Step = u.Step
	entry.Iteration = s.IterationCount
	if entry.Timestamp.IsZero() {
		entry.Timestamp = at
	}
	s.ExecutionLog = append(s.ExecutionLog, entry)
	return nil
}

// runeLen reports the length of text in characters.
func runeLen(text string) int {
	return utf8.RuneCountInString(text)
}
