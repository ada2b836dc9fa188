package keyword

import (
	"errors"
	"testing"
)

type mapDictionary struct {
	terms map[string]int
	err   error
	loads int
}

func (m *mapDictionary) Terms() (map[string]int, error) {
	m.loads++
	return m.terms, m.err
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"paris", "paris", 0},
		{"kitten", "sitting", 3},
		{"lumiere", "lumière", 1},
		{"revolução", "revolucao", 2},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSpellChecker_Suggest(t *testing.T) {
	dict := &mapDictionary{terms: map[string]int{"lumière": 4, "lumières": 1, "paris": 9, "barricade": 2}}
	s := NewSpellChecker(dict)

	got := s.Suggest("lumiere")
	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2: %+v", len(got), got)
	}
	if got[0].Term != "lumière" || got[0].Distance != 1 {
		t.Errorf("best suggestion = %+v, want lumière at distance 1", got[0])
	}
	if s.Suggest("zzzzzzzz") != nil {
		t.Error("expected no suggestions for an unrelated term")
	}
}

func TestSpellChecker_minFrequency(t *testing.T) {
	s := NewSpellChecker(&mapDictionary{terms: map[string]int{"lumière": 1}}, WithMinFrequency(2))
	if got := s.Suggest("lumiere"); len(got) != 0 {
		t.Errorf("rare terms should be ignored, got %+v", got)
	}
}

func TestSpellChecker_Correct(t *testing.T) {
	dict := &mapDictionary{terms: map[string]int{"lumière": 4, "paris": 9}}
	s := NewSpellChecker(dict)

	if got := s.Correct("Lumiere de paris"); got != "lumière de paris" {
		t.Errorf("Correct = %q", got)
	}
	if got := s.Correct("paris"); got != "" {
		t.Errorf("known query should not be corrected, got %q", got)
	}
	if dict.loads != 1 {
		t.Errorf("dictionary loaded %d times, want 1", dict.loads)
	}
	s.Invalidate()
	s.Correct("paris")
	if dict.loads != 2 {
		t.Errorf("Invalidate should force a reload, loads = %d", dict.loads)
	}
}

func TestSpellChecker_dictionaryError(t *testing.T) {
	s := NewSpellChecker(&mapDictionary{err: errors.New("closed")})
	if got := s.Correct("anything"); got != "" {
		t.Errorf("Correct = %q, want empty on dictionary error", got)
	}
}
