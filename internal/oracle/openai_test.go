package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string, seenModel *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization = %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if seenModel != nil {
			*seenModel = req.Model
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("response format = %v", req.ResponseFormat)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}
}

func testModels() Models {
	return Models{Indexing: "idx-model", Matching: "match-model", Verification: "verify-model"}
}

func TestOpenAIInvoke_usesModelPerTask(t *testing.T) {
	var model string
	server := httptest.NewServer(completionHandler(t, `{"snippets": []}`, &model))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Models: testModels()})
	for kind, want := range map[TaskKind]string{
		TaskIndexSource:      "idx-model",
		TaskIndexTarget:      "idx-model",
		TaskExtractSnippets:  "match-model",
		TaskVerifyMatch:      "verify-model",
		TaskGenerateCitation: "verify-model",
	} {
		out, err := client.Invoke(context.Background(), kind, RoleDetective, "prompt")
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if out != `{"snippets": []}` {
			t.Errorf("%s: content = %q", kind, out)
		}
		if model != want {
			t.Errorf("%s: model = %q, want %q", kind, model, want)
		}
	}
}

func TestOpenAIHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "```json\n{\"ok\":true}\n```", nil))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Models: testModels()})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestOpenAIInvoke_retriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewOpenAIClient(
		OpenAIConfig{APIKey: "test", BaseURL: server.URL, Models: testModels()},
		WithRetryMaxAttempts(3),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.Invoke(context.Background(), TaskVerifyMatch, RoleDetective, "p"); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Errorf("sleeps = %v, want two sleeps honouring Retry-After", slept)
	}
}

func TestOpenAIInvoke_clientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Models: testModels()},
		WithSleeper(func(time.Duration) {}))
	_, err := client.Invoke(context.Background(), TaskExtractSnippets, RoleLinguist, "p")
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CallError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenAIInvoke_emptyContent(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "", nil))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Models: testModels()},
		WithRetryMaxAttempts(2), WithSleeper(func(time.Duration) {}))
	_, err := client.Invoke(context.Background(), TaskVerifyMatch, RoleDetective, "p")
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResponseError, got %v", err)
	}
}

func TestOpenAIInvoke_requiresKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Invoke(context.Background(), TaskVerifyMatch, RoleDetective, "p"); err == nil {
		t.Fatal("expected error without api key")
	}
}
