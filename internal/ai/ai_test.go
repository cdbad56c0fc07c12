package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	last []Message
}

func (p *recordingProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	p.last = append([]Message(nil), messages...)
	return "ok", nil
}

func TestChatGenerator_SystemThenUser(t *testing.T) {
	prov := &recordingProvider{}
	out, err := ChatGenerator{Provider: prov}.Generate(context.Background(), "rules", "transcript")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []Message{{Role: "system", Content: "rules"}, {Role: "user", Content: "transcript"}}, prov.last)
}

func TestRegistry_Generator(t *testing.T) {
	reg := NewRegistry()
	prov := &recordingProvider{}
	reg.Register(" Fake ", func(ctx context.Context, model string) (Provider, error) { return prov, nil })

	g, err := reg.Generator(context.Background(), "fake", "m")
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Len(t, prov.last, 1)
	assert.Equal(t, []string{"fake"}, reg.Names())

	_, err = reg.Generator(context.Background(), "missing", "m")
	assert.Error(t, err)
}

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:latest", req.Model)
		assert.False(t, req.Stream)
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, "json", req.Format)
		_ = json.NewEncoder(w).Encode(ollamaChatResp{Message: Message{Role: "assistant", Content: `{"id":"T1"}`}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "")
	p.JSONMode = true
	out, err := ChatGenerator{Provider: p}.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"T1"}`, out)
}

func TestOpenRouterProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Title"))
		var req openRouterChatReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.ResponseFormat)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "openai/gpt-4o-mini", "", "")
	out, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = NewOpenRouterProvider(srv.URL, "", "m", "", "").Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenRouterProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenRouterProvider(srv.URL, "key", "m", "", "").Chat(context.Background(), nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Contains(t, se.Body, "rate limited")
}

func TestOllamaProvider_ReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "nope").Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
