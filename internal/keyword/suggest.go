package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
}

// SpellChecker proposes indexed terms for query words the index does not contain.
type SpellChecker struct {
	dict        TermDictionary
	maxDistance int
	minFreq     int

	mu    sync.RWMutex
	terms map[string]int
	valid bool
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores terms that appear in fewer than f documents.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSpellChecker returns a SpellChecker reading terms lazily from dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{dict: dict, maxDistance: 2, minFreq: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached dictionary; the next call reloads it.
func (s *SpellChecker) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *SpellChecker) load() (map[string]int, error) {
	s.mu.RLock()
	if s.valid {
		terms := s.terms
		s.mu.RUnlock()
		return terms, nil
	}
	s.mu.RUnlock()

	terms, err := s.dict.Terms()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.terms, s.valid = terms, true
	s.mu.Unlock()
	return terms, nil
}

// Suggest returns dictionary terms within the edit distance of term, closest and most
// frequent first.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	terms, err := s.load()
	if err != nil {
		return nil
	}
	term = strings.ToLower(term)
	n := len([]rune(term))

	var out []Suggestion
	for cand, freq := range terms {
		if cand == term || freq < s.minFreq {
			continue
		}
		if d := len([]rune(cand)) - n; d > s.maxDistance || -d > s.maxDistance {
			continue
		}
		if dist := Levenshtein(term, cand); dist <= s.maxDistance {
			out = append(out, Suggestion{Term: cand, Distance: dist, Frequency: freq})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Correct returns query with unknown words replaced by their best suggestion, or ""
// when nothing changed.
func (s *SpellChecker) Correct(query string) string {
	terms, err := s.load()
	if err != nil || len(terms) == 0 {
		return ""
	}
	words := tokenize(query)
	changed := false
	for i, w := range words {
		if _, ok := terms[w]; ok {
			continue
		}
		if sugg := s.Suggest(w); len(sugg) > 0 {
			words[i] = sugg[0].Term
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(words, " ")
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
