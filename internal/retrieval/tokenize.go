package retrieval

import (
	"strings"
	"unicode"
)

// tokenizer scans a free-text query into lowercase word tokens. It reuses
// the rune-at-a-time scanning shape of internal/query/lexer.go (next,
// peek, backup) but drops that lexer's operator/keyword vocabulary: a
// retrieval query is prose, not a filter expression, so every maximal run
// of letters/digits is a token.
type tokenizer struct {
	input []rune
	pos   int
}

func newTokenizer(s string) *tokenizer { return &tokenizer{input: []rune(s)} }

func (t *tokenizer) next() rune {
	if t.pos >= len(t.input) {
		return 0
	}
	r := t.input[t.pos]
	t.pos++
	return r
}

func (t *tokenizer) backup() { t.pos-- }

func isTokenChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Tokenize extracts normalized (lowercased) word tokens from a query
// string, discarding punctuation and whitespace, and drops stopwords so
// seed resolution and overlap scoring are not dominated by filler words.
func Tokenize(query string) []string {
	tk := newTokenizer(query)
	var tokens []string
	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		word := strings.ToLower(sb.String())
		sb.Reset()
		if !stopwords[word] {
			tokens = append(tokens, word)
		}
	}
	for {
		r := tk.next()
		if r == 0 {
			break
		}
		if isTokenChar(r) {
			sb.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true,
	"in": true, "is": true, "it": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "was": true, "what": true, "when": true,
	"where": true, "why": true, "with": true,
}

// overlapRatio is the fraction of queryTokens present in textTokens,
// used as the textual-overlap term of scoring (spec.md §4.7 step 3b).
func overlapRatio(queryTokens, textTokens []string) float64 {
	if len(queryTokens) == 0 || len(textTokens) == 0 {
		return 0
	}
	present := make(map[string]bool, len(textTokens))
	for _, w := range textTokens {
		present[w] = true
	}
	hits := 0
	for _, q := range queryTokens {
		if present[q] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// estimateTokens approximates the token cost of text for budgeting
// purposes. No tokenizer library appears anywhere in the reference
// corpus, so this uses the common whitespace-word heuristic rather than
// depending on a model-specific BPE vocabulary the corpus never pulls in.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}
