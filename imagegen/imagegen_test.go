package imagegen_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestHTTPGenerator_B64Response(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer tg-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "flux-test", req["model"])
		assert.Equal(t, "b64_json", req["response_format"])
		assert.Equal(t, float64(1), req["n"])
		assert.Contains(t, req["prompt"], "bamboo")

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngHeader)}},
		})
	}))
	defer server.Close()

	gen := imagegen.NewHTTPGenerator(
		imagegen.WithBaseURL(server.URL+"/v1"),
		imagegen.WithModel("flux-test"),
		imagegen.WithAPIKey("tg-key"),
	)

	img, err := gen.GenerateImage(context.Background(), "bamboo bottle on a beach")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "png", img.Extension())
}

func TestHTTPGenerator_URLResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/img.png"}]}`))
	}))
	defer server.Close()

	gen := imagegen.NewHTTPGenerator(imagegen.WithBaseURL(server.URL))
	img, err := gen.GenerateImage(context.Background(), "bottle")
	require.NoError(t, err)
	assert.Empty(t, img.Data)
	assert.Equal(t, "https://cdn.example.com/img.png", img.URL)
}

func TestHTTPGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   llm.ErrorKind
	}{
		{"auth", http.StatusUnauthorized, `{"error":"bad key"}`, llm.KindAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, llm.KindRateLimited},
		{"server error", http.StatusBadGateway, `{}`, llm.KindTransport},
		{"empty data", http.StatusOK, `{"data":[]}`, llm.KindTransport},
		{"malformed", http.StatusOK, `<html>`, llm.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gen := imagegen.NewHTTPGenerator(imagegen.WithBaseURL(server.URL))
			_, err := gen.GenerateImage(context.Background(), "bottle")
			require.Error(t, err)
			assert.Equal(t, tt.kind, llm.KindOf(err))
		})
	}
}

func TestHTTPGenerator_EmptyPrompt(t *testing.T) {
	gen := imagegen.NewHTTPGenerator(imagegen.WithBaseURL("http://unused"))
	_, err := gen.GenerateImage(context.Background(), "  ")
	assert.True(t, llm.IsFatal(err))
}

func TestGenAIGenerator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":predict"), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]string{{
				"bytesBase64Encoded": base64.StdEncoding.EncodeToString(pngHeader),
				"mimeType":           "image/png",
			}},
		})
	}))
	defer server.Close()

	gen, err := imagegen.NewGenAIGenerator(context.Background(), imagegen.GenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	img, err := gen.GenerateImage(context.Background(), "bamboo bottle")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestGenAIGenerator_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	gen, err := imagegen.NewGenAIGenerator(context.Background(), imagegen.GenAIConfig{
		APIKey:  "bad-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	_, err = gen.GenerateImage(context.Background(), "bamboo bottle")
	require.Error(t, err)
	assert.Equal(t, llm.KindAuth, llm.KindOf(err))
}

func TestNewGenAIGenerator_RequiresKey(t *testing.T) {
	_, err := imagegen.NewGenAIGenerator(context.Background(), imagegen.GenAIConfig{})
	assert.Error(t, err)
}

func TestFileStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := imagegen.NewFileStore(dir)

	path, err := store.Save("abc", &imagegen.Image{Data: pngHeader, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "campaign_abc.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestFileStore_SaveURLOnly(t *testing.T) {
	store := imagegen.NewFileStore(t.TempDir())

	ref, err := store.Save("abc", &imagegen.Image{URL: "https://cdn.example.com/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.png", ref)

	_, err = store.Save("abc", &imagegen.Image{})
	assert.Error(t, err)
}

func TestImage_Extension(t *testing.T) {
	assert.Equal(t, "jpg", (&imagegen.Image{MIMEType: "image/jpeg"}).Extension())
	assert.Equal(t, "webp", (&imagegen.Image{MIMEType: "image/webp"}).Extension())
	assert.Equal(t, "png", (&imagegen.Image{Data: pngHeader}).Extension())
	assert.Equal(t, "jpg", (&imagegen.Image{Data: []byte("\xff\xd8\xff\xe0")}).Extension())
}
