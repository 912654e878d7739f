package model

import (
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(threshold int, recovery time.Duration) (*Registry, *fakeClock) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: threshold, RecoveryTimeout: recovery})
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.tracker().now = clock.now
	return r, clock
}

func TestEndpointHealthTracking(t *testing.T) {
	r, _ := newTestRegistry(3, time.Minute)

	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected endpoint to be available initially")
	}
	if r.GetEndpointHealth("groq-llama") != nil {
		t.Error("expected no health info before any requests")
	}

	r.MarkEndpointSuccess("groq-llama")

	health := r.GetEndpointHealth("groq-llama")
	if health == nil {
		t.Fatal("expected health info after success")
	}
	if !health.Available || health.FailureCount != 0 || health.LastSuccess.IsZero() {
		t.Errorf("unexpected health after success: %+v", health)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	r, clock := newTestRegistry(2, 30*time.Second)

	r.MarkEndpointFailure("groq-llama")
	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected endpoint available after 1 failure")
	}

	r.MarkEndpointFailure("groq-llama")
	if r.IsEndpointAvailable("groq-llama") {
		t.Error("expected circuit open after 2 failures")
	}

	clock.advance(31 * time.Second)
	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected half-open after recovery timeout")
	}

	r.MarkEndpointSuccess("groq-llama")
	health := r.GetEndpointHealth("groq-llama")
	if health.CircuitOpen || health.FailureCount != 0 {
		t.Errorf("expected closed circuit after success: %+v", health)
	}
}

func TestGetAvailableFallbackChain(t *testing.T) {
	r, _ := newTestRegistry(1, time.Hour)

	r.MarkEndpointFailure("groq-llama")
	chain := r.GetAvailableFallbackChain(CapabilityWriting)
	if len(chain) != 1 || chain[0] != "ollama-llama" {
		t.Errorf("expected only ollama-llama, got %v", chain)
	}

	r.MarkEndpointFailure("ollama-llama")
	chain = r.GetAvailableFallbackChain(CapabilityWriting)
	if len(chain) != 2 {
		t.Errorf("expected full chain when everything is down, got %v", chain)
	}
}

func TestResetEndpointHealth(t *testing.T) {
	r, _ := newTestRegistry(1, time.Hour)

	r.MarkEndpointFailure("groq-llama")
	r.ResetEndpointHealth("groq-llama")

	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected endpoint available after reset")
	}
	if r.GetEndpointHealth("groq-llama") != nil {
		t.Error("expected health info cleared")
	}
}
