// Package testutil provides test doubles for code that depends on the llm
// client.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/adpilot/llm"
)

// MockLLMClient is a thread-safe stand-in for *llm.Client. It records every
// request and returns configured responses in sequence.
//
// Usage:
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: "Sip sustainably.", Model: "test-model"},
//	        {Content: "APPROVED - clear", Model: "test-model"},
//	    },
//	}
//
// Errs is consumed in step with Responses: a non-nil Errs[i] fails call i.
type MockLLMClient struct {
	mu              sync.Mutex
	capturedContext context.Context
	requests        []llm.Request
	Responses       []*llm.Response // Responses to return in sequence
	Errs            []error         // Per-call errors, indexed like Responses
	Err             error           // Error for every call (takes precedence)
	callCount       int
}

// Complete returns the next configured response or error.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.requests = append(m.requests, req)
	i := m.callCount
	m.callCount++

	if m.Err != nil {
		return nil, m.Err
	}
	if i < len(m.Errs) && m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// GetCapturedContext returns the last context passed to Complete().
func (m *MockLLMClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Reset clears recorded calls so the mock can be reused.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.capturedContext = nil
}
