package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewProviderWithConfig(&Config{
		BaseURL:    srv.URL,
		EmbedModel: "embed",
		ChatModel:  "chat",
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	})
}

func TestNewProvider_Registered(t *testing.T) {
	p, err := llm.NewProvider(ProviderName, map[string]any{"base_url": "http://ollama:11434", "chat_model": "qwen"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Equal(t, "qwen", p.(*Provider).config.ChatModel)
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embed", req.Model)
		out := embedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	vec, err := p.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestStreamChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 256, req.Options.NumPredict)

		for _, part := range []string{"Guten ", "Tag", "!"} {
			fmt.Fprintf(w, `{"model":"chat","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"model":"chat","message":{"role":"assistant","content":""},"done":true}`)
	})

	ch, err := p.StreamChat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "Hallo"}},
		llm.GenerateOptions{Temperature: 0.2, MaxTokens: 256})
	require.NoError(t, err)

	text, err := llm.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Guten Tag!", text)
}

func TestStreamChat_ErrorLine(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"Teil"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model unloaded"}`)
	})

	ch, err := p.StreamChat(context.Background(), nil, llm.GenerateOptions{})
	require.NoError(t, err)
	text, err := llm.Collect(ch)
	assert.Equal(t, "Teil", text)
	assert.ErrorContains(t, err, "model unloaded")
}

func TestStreamChat_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.StreamChat(context.Background(), nil, llm.GenerateOptions{})
	assert.ErrorContains(t, err, "404")
}

func TestGenerateText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "sys", req.System)
		require.NotNil(t, req.Options.Temperature)
		assert.InDelta(t, 0.2, *req.Options.Temperature, 1e-9)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  Antwort  ", Done: true})
	})

	out, err := p.GenerateText(context.Background(), "frage", llm.GenerateOptions{Temperature: 0.2, System: "sys"})
	require.NoError(t, err)
	assert.Equal(t, "  Antwort  ", out)
}
