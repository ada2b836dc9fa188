package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/models"
)

type countingOracle struct {
	calls int
}

func (c *countingOracle) Invoke(context.Context, TaskKind, string, string) (string, error) {
	c.calls++
	return "{}", nil
}

func TestRateLimited_forwards(t *testing.T) {
	inner := &countingOracle{}
	rl := NewRateLimited(inner, 0, 0)
	for i := 0; i < 3; i++ {
		if _, err := rl.Invoke(context.Background(), TaskVerifyMatch, RoleDetective, "p"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d", inner.calls)
	}
}

func TestRateLimited_cancelledContext(t *testing.T) {
	rl := NewRateLimited(&countingOracle{}, 0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())
	// Drain the single burst token, then cancel before the next one.
	if _, err := rl.Invoke(ctx, TaskVerifyMatch, RoleDetective, "p"); err != nil {
		t.Fatal(err)
	}
	cancel()
	_, err := rl.Invoke(ctx, TaskVerifyMatch, RoleDetective, "p")
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CallError, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("TRANSMATCH_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.AIConfig{Provider: config.ProviderOpenAI}
	if _, err := New(cfg); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	cfg.APIKey = "k"
	if _, err := New(cfg); err != nil {
		t.Errorf("openai: %v", err)
	}
	cfg.Provider = config.ProviderCohere
	if _, err := New(cfg); err != nil {
		t.Errorf("cohere: %v", err)
	}
	cfg.Provider = "llama"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestPrompts(t *testing.T) {
	article := &models.Article{Title: "Révolution", PageRange: "1-3", Text: strings.Repeat("palavra ", 100)}
	p := SnippetPrompt(article, 40)
	if !strings.Contains(p, "between 2 and 4") || !strings.Contains(p, "periodical's own title") {
		t.Error("snippet prompt must ask for 2-4 resilient anchors and exclude boilerplate")
	}
	if strings.Count(p, "palavra") > 6 {
		t.Error("article text should be capped")
	}

	cand := &models.Candidate{
		Article:  article,
		Document: &models.Document{DisplayName: "GMP1833.pdf", Text: "La lumière de Paris"},
		Supporting: []models.SnippetHit{{
			Snippet: models.Snippet{Original: "a luz", Translated: "la lumière"}, Ratio: 1,
		}},
	}
	v := VerifyPrompt(cand, 100)
	for _, want := range []string{"conservative", "NOT sufficient", "confirmed_snippets", "la lumière", "GMP1833.pdf"} {
		if !strings.Contains(v, want) {
			t.Errorf("verify prompt missing %q", want)
		}
	}

	withIndex := CitationPrompt(&models.Document{DisplayName: "a.pdf", Index: []byte(`{"document_summary":"x"}`)})
	if !strings.Contains(withIndex, `"document_summary":"x"`) {
		t.Error("citation prompt should embed the index")
	}
	noIndex := CitationPrompt(&models.Document{DisplayName: "a.pdf", Text: "Chapitre premier"})
	if !strings.Contains(noIndex, "Chapitre premier") {
		t.Error("citation prompt should fall back to the text")
	}
}
