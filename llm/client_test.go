package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/adpilot/llm"
	_ "github.com/c360studio/adpilot/llm/providers" // Register providers
	"github.com/c360studio/adpilot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCompletion(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":    "chatcmpl-123",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func singleEndpointRegistry(url string) *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityWriting: {
				Description: "Test capability",
				Preferred:   []string{"test-model"},
			},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: url, Model: "test-model"},
		},
	)
}

func fastRetry(attempts int) llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1,
		MaxBackoff:        5 * time.Millisecond,
	}
}

type memRecorder struct {
	mu      sync.Mutex
	records []*llm.CallRecord
}

func (m *memRecorder) RecordCall(_ context.Context, r *llm.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memRecorder) all() []*llm.CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.CallRecord(nil), m.records...)
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		writeCompletion(w, "Sip sustainably with bamboo.")
	}))
	defer server.Close()

	rec := &memRecorder{}
	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithCallRecorder(rec))

	ctx := llm.WithCampaignID(context.Background(), "camp-1")
	resp, err := client.Complete(ctx, llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "Eco bottle"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Sip sustainably with bamboo.", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, resp.RequestID, records[0].RequestID)
	assert.Equal(t, "camp-1", records[0].CampaignID)
	assert.Equal(t, "writing", records[0].Capability)
	assert.Equal(t, "ollama", records[0].Provider)
	assert.Empty(t, records[0].Error)
	assert.Zero(t, records[0].Retries)
}

func TestClient_Complete_RetryOnTransientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("overloaded"))
			return
		}
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	rec := &memRecorder{}
	client := llm.NewClient(singleEndpointRegistry(server.URL),
		llm.WithRetryConfig(fastRetry(3)),
		llm.WithCallRecorder(rec))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, 1, rec.all()[0].Retries)
}

func TestClient_Complete_NoRetryOnFatalError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid model"}`))
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithRetryConfig(fastRetry(3)))

	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Equal(t, llm.KindBadRequest, llm.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Complete_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   llm.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, llm.KindAuth},
		{"forbidden", http.StatusForbidden, llm.KindAuth},
		{"rate limited", http.StatusTooManyRequests, llm.KindRateLimited},
		{"gateway timeout", http.StatusGatewayTimeout, llm.KindTimeout},
		{"server error", http.StatusInternalServerError, llm.KindTransport},
		{"unprocessable", http.StatusUnprocessableEntity, llm.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			rec := &memRecorder{}
			client := llm.NewClient(singleEndpointRegistry(server.URL),
				llm.WithRetryConfig(fastRetry(1)),
				llm.WithCallRecorder(rec))

			_, err := client.Complete(context.Background(), llm.Request{
				Capability: "writing",
				Messages:   []llm.Message{{Role: "user", Content: "hi"}},
			})

			require.Error(t, err)
			assert.Equal(t, tt.kind, llm.KindOf(err))

			var se *llm.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)

			require.Len(t, rec.all(), 1)
			assert.Equal(t, tt.kind, rec.all()[0].ErrorKind)
		})
	}
}

func TestClient_Complete_MalformedBodyIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithRetryConfig(fastRetry(1)))

	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.Equal(t, llm.KindTransport, llm.KindOf(err))
	assert.True(t, llm.IsTransient(err))
}

func TestClient_Complete_Fallback(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, "from fallback")
	}))
	defer fallback.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityReviewing: {
				Preferred: []string{"primary"},
				Fallback:  []string{"secondary"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary":   {Provider: "ollama", URL: primary.URL, Model: "primary-model"},
			"secondary": {Provider: "ollama", URL: fallback.URL, Model: "secondary-model"},
		},
	)

	rec := &memRecorder{}
	client := llm.NewClient(registry, llm.WithRetryConfig(fastRetry(2)), llm.WithCallRecorder(rec))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "reviewing",
		Messages:   []llm.Message{{Role: "user", Content: "review"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, int32(2), primaryCalls.Load())

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, []string{"primary"}, records[0].FallbacksUsed)
	assert.Equal(t, 1, records[0].Retries)

	health := registry.GetEndpointHealth("primary")
	require.NotNil(t, health)
	assert.Equal(t, 1, health.FailureCount)
}

func TestClient_Complete_AuthErrorContinuesChain(t *testing.T) {
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()

	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, "local answer")
	}))
	defer local.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityWriting: {Preferred: []string{"hosted", "local"}},
		},
		map[string]*model.EndpointConfig{
			"hosted": {Provider: "groq", URL: denied.URL, Model: "llama-3.1-8b-instant"},
			"local":  {Provider: "ollama", URL: local.URL, Model: "llama3.1:8b"},
		},
	)

	client := llm.NewClient(registry, llm.WithRetryConfig(fastRetry(2)))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Content)
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		writeCompletion(w, "too late")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithRetryConfig(fastRetry(3)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, llm.Request{
		Capability: "writing",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.Equal(t, llm.KindTimeout, llm.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(singleEndpointRegistry("http://unused"))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	assert.True(t, llm.IsFatal(err))

	_, err = client.Complete(context.Background(), llm.Request{Capability: "writing"})
	assert.True(t, llm.IsFatal(err))
}

func TestClient_Complete_MaxConcurrent(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Complete(context.Background(), llm.Request{
				Capability: "writing",
				Messages:   []llm.Message{{Role: "user", Content: "hi"}},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := llm.RetryConfig{
		BackoffBase:       100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        300 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(3))

	cfg.Jitter = 0.25
	for range 20 {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, llm.ErrorKind(""), llm.KindOf(nil))
	assert.Equal(t, llm.KindTimeout, llm.KindOf(context.DeadlineExceeded))
	assert.Equal(t, llm.KindTransport, llm.KindOf(assert.AnError))
	assert.Equal(t, llm.KindAuth, llm.KindOf(llm.NewServiceError(llm.KindAuth, assert.AnError)))
}
