package retrieval

import (
	"strings"
	"unicode"
)

// MinKeywordLen is the shortest token kept as a keyword.
const MinKeywordLen = 3

// DefaultStopWords are dropped from questions when Params.StopWords is nil.
var DefaultStopWords = []string{
	"a", "an", "and", "any", "are", "at", "be", "but", "by", "can", "did", "do", "does",
	"during", "for", "from", "had", "happen", "happened", "happening", "has", "have", "how",
	"in", "is", "it", "me", "of", "on", "or", "show", "tell", "that", "the", "there", "this",
	"to", "was", "were", "what", "when", "where", "which", "who", "why", "with", "you",
}

// ExtractKeywords lower-cases the question, splits it into words, and keeps up to max distinct
// tokens that are not stop words and have at least MinKeywordLen characters. When nothing
// survives, the whole trimmed question is the only term.
func ExtractKeywords(question string, stopWords map[string]struct{}, max int) []string {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil
	}

	tokens := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, max)

	for _, tok := range tokens {
		if len(terms) == max {
			break
		}

		if len([]rune(tok)) < MinKeywordLen {
			continue
		}

		if _, stop := stopWords[tok]; stop {
			continue
		}

		if _, dup := seen[tok]; dup {
			continue
		}

		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}

	if len(terms) == 0 {
		return []string{q}
	}

	return terms
}

// StopWordSet builds the lookup set for ExtractKeywords.
func StopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}

	return set
}
