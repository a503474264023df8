package fakeservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// ChatRequest is what the fake LLM recorded for one call, in either the
// OpenAI-compatible or the Ollama dialect.
type ChatRequest struct {
	Path          string
	Authorization string
	Model         string
	Prompt        string
	Temperature   float64
	MaxTokens     int
	Format        string
	Raw           map[string]any
}

// LLMResponder decides the reply for a prompt. content is the assistant
// message on 200; for any other status it is written as the raw body.
type LLMResponder func(prompt string) (status int, content string)

// LLM is a fake language-model server that speaks the OpenAI chat-completions
// dialect on /v1/chat/completions and the Ollama dialect on /api/chat.
type LLM struct {
	*httptest.Server

	mu        sync.Mutex
	responder LLMResponder
	requests  []ChatRequest
}

// NewLLM starts a fake LLM server that returns an empty JSON object until told
// otherwise. It is closed when the test ends.
func NewLLM(tb testing.TB) *LLM {
	l := &LLM{}
	l.responder = func(string) (int, string) { return http.StatusOK, "{}" }

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", l.handleOpenAI)
	r.Post("/api/chat", l.handleOllama)
	l.Server = httptest.NewServer(r)
	tb.Cleanup(l.Server.Close)
	return l
}

// Endpoint is the OpenAI-compatible chat completions URL.
func (l *LLM) Endpoint() string { return l.URL + "/v1/chat/completions" }

// RespondWith answers every call with content.
func (l *LLM) RespondWith(content string) {
	l.Respond(func(string) (int, string) { return http.StatusOK, content })
}

// RespondStatus answers every call with a non-200 status.
func (l *LLM) RespondStatus(status int, body string) {
	l.Respond(func(string) (int, string) { return status, body })
}

// Respond installs a per-prompt responder.
func (l *LLM) Respond(fn LLMResponder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = fn
}

// Requests returns the calls received so far.
func (l *LLM) Requests() []ChatRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ChatRequest(nil), l.requests...)
}

// EnrichmentJSON renders a well-formed enrichment payload.
func EnrichmentJSON(cleaned, summary string, entities ...string) string {
	if entities == nil {
		entities = []string{}
	}
	b, _ := json.Marshal(map[string]any{
		"cleaned_text": cleaned,
		"summary":      summary,
		"entities":     entities,
	})
	return string(b)
}

func (l *LLM) record(r *http.Request) (ChatRequest, bool) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return ChatRequest{}, false
	}
	req := ChatRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Raw:           raw,
	}
	req.Model, _ = raw["model"].(string)
	if msgs, ok := raw["messages"].([]any); ok && len(msgs) > 0 {
		if m, ok := msgs[len(msgs)-1].(map[string]any); ok {
			req.Prompt, _ = m["content"].(string)
		}
	}
	if v, ok := raw["temperature"].(float64); ok {
		req.Temperature = v
	}
	if v, ok := raw["max_tokens"].(float64); ok {
		req.MaxTokens = int(v)
	}
	if rf, ok := raw["response_format"].(map[string]any); ok {
		req.Format, _ = rf["type"].(string)
	}
	if f, ok := raw["format"].(string); ok {
		req.Format = f
	}
	if opts, ok := raw["options"].(map[string]any); ok {
		if v, ok := opts["temperature"].(float64); ok {
			req.Temperature = v
		}
		if v, ok := opts["num_predict"].(float64); ok {
			req.MaxTokens = int(v)
		}
	}

	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()
	return req, true
}

func (l *LLM) reply(prompt string) (int, string) {
	l.mu.Lock()
	fn := l.responder
	l.mu.Unlock()
	return fn(prompt)
}

func (l *LLM) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	req, ok := l.record(r)
	if !ok {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	status, content := l.reply(req.Prompt)
	if status != http.StatusOK {
		http.Error(w, content, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-fake",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func (l *LLM) handleOllama(w http.ResponseWriter, r *http.Request) {
	req, ok := l.record(r)
	if !ok {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}
	status, content := l.reply(req.Prompt)
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": content})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":      req.Model,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		"message":    map[string]any{"role": "assistant", "content": content},
		"done":       true,
	})
}
