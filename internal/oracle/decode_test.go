package oracle

import (
	"errors"
	"testing"

	"github.com/hyperjump/transmatch/internal/models"
)

func TestDecodeVerdict(t *testing.T) {
	raw := "```json\n{\"is_match\": true, \"confidence\": 0.82, \"match_type\": \"Direct_Translation\", \"reason\": \"same plot\"}\n```"
	v, err := Decode[Verdict](TaskVerifyMatch, raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !v.Matched() || v.Score() != 0.82 {
		t.Errorf("got matched=%v score=%v", v.Matched(), v.Score())
	}
	if v.MatchType != models.MatchDirectTranslation {
		t.Errorf("match type = %q", v.MatchType)
	}
}

func TestDecodeVerdict_noMatchDefaultsType(t *testing.T) {
	v, err := Decode[Verdict](TaskVerifyMatch, `Here you go: {"is_match": false, "confidence": 0.1} thanks`)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if v.MatchType != models.MatchNone {
		t.Errorf("match type = %q, want no_match", v.MatchType)
	}
}

func TestDecode_invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "I cannot help with that."},
		{"missing is_match", `{"confidence": 0.9, "match_type": "adaptation"}`},
		{"missing confidence", `{"is_match": true, "match_type": "adaptation"}`},
		{"confidence out of range", `{"is_match": true, "confidence": 7, "match_type": "adaptation"}`},
		{"unknown match type", `{"is_match": true, "confidence": 0.7, "match_type": "homage"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[Verdict](TaskVerifyMatch, tt.raw)
			var re *ResponseError
			if !errors.As(err, &re) {
				t.Fatalf("expected *ResponseError, got %v", err)
			}
			if re.Kind != TaskVerifyMatch {
				t.Errorf("kind = %s", re.Kind)
			}
			if !IsItemError(err) {
				t.Error("response errors must be item-level")
			}
		})
	}
}

func TestDecodeSnippets(t *testing.T) {
	raw := `{"snippets": [
		{"original": "Luiz Filippe", "translated": "Louis-Philippe", "anchor_type": "properName"},
		{"original": "vazio", "translated": "  "},
		{"original": "em 1848", "translated": "en 1848", "anchor_type": "date"},
		{"original": "a luz", "translated": "la lumière", "anchor_type": "whatever"}
	]}`
	res, err := Decode[SnippetResult](TaskExtractSnippets, raw)
	if err != nil {
		t.Fatal(err)
	}
	usable := res.Usable(2)
	if len(usable) != 2 {
		t.Fatalf("usable = %d, want 2", len(usable))
	}
	if usable[0].Anchor != models.AnchorProperName || usable[1].Translated != "en 1848" {
		t.Errorf("unexpected snippets: %+v", usable)
	}
	if all := res.Usable(0); all[2].Anchor != models.AnchorDistinctivePhrase {
		t.Errorf("unknown anchor should fall back to distinctivePhrase, got %s", all[2].Anchor)
	}

	empty, err := Decode[SnippetResult](TaskExtractSnippets, `{"snippets": []}`)
	if err != nil {
		t.Fatalf("empty snippet list is valid: %v", err)
	}
	if len(empty.Usable(4)) != 0 {
		t.Error("expected no usable snippets")
	}

	if _, err := Decode[SnippetResult](TaskExtractSnippets, `{"anchors": []}`); err == nil {
		t.Error("missing snippets key should fail")
	}
}

func TestDecodeCitationAndIndexes(t *testing.T) {
	c, err := Decode[CitationResult](TaskGenerateCitation,
		`{"chicago_bibliography": "Dumas, Alexandre. Le Comte. Paris, 1844.", "fields": {"author": "Alexandre Dumas", "title": "Le Comte", "date": "1844"}}`)
	if err != nil {
		t.Fatal(err)
	}
	cit := c.Citation()
	if cit.Author != "Alexandre Dumas" || cit.Date != "1844" {
		t.Errorf("unexpected citation: %+v", cit)
	}

	if _, err := Decode[SourceIndex](TaskIndexSource, `{"keywords": ["paris"]}`); err == nil {
		t.Error("source index without summary should fail")
	}
	if _, err := Decode[TargetIndex](TaskIndexTarget, `{"document_summary_pt": "Crônica", "keywords_pt": []}`); err != nil {
		t.Errorf("target index: %v", err)
	}
}
