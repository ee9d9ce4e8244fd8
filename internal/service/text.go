package service

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {},
}

// tokenize lowercases s and splits it on whitespace, punctuation and
// boundaries between Han and non-Han runs.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	curHan := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || isSeparator(r) {
			flush()
			continue
		}
		han := unicode.Is(unicode.Han, r)
		if cur.Len() > 0 && han != curHan {
			flush()
		}
		curHan = han
		cur.WriteRune(r)
	}
	flush()
	return tokens
}

func isSeparator(r rune) bool {
	// keep characters that commonly appear inside technical terms
	switch r {
	case '#', '+', '.', '-', '_':
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// extractTerms returns the de-duplicated, stopword-free search terms of query.
func extractTerms(query string) []string {
	tokens := tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".-_")
		if tok == "" {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func isHanText(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text. Latin phrases must
// sit on word boundaries; Han phrases match as plain substrings.
func containsPhrase(text, phrase string) bool {
	return phraseIndex(text, phrase) >= 0
}

func phraseIndex(text, phrase string) int {
	text = strings.ToLower(text)
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return -1
	}
	if isHanText(phrase) {
		return strings.Index(text, phrase)
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(phrase)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return start
		}
		offset = start + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	if r >= 0x80 {
		return true
	}
	return !(unicode.IsLetter(r) || unicode.IsDigit(r))
}

// removePhrase deletes every boundary-respecting occurrence of phrase from text.
func removePhrase(text, phrase string) string {
	if lower := strings.ToLower(text); len(lower) != len(text) {
		text = lower
	}
	for {
		idx := phraseIndex(text, phrase)
		if idx < 0 {
			return text
		}
		text = text[:idx] + " " + text[idx+len(phrase):]
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
