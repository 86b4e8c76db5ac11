package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

// The search-worthiness decision is a total function over the message text:
// cheap, synchronous, and free of external calls. The cue lists are a policy
// point and can be overridden through Config.

var defaultInterrogatives = []string{
	"what", "who", "whom", "whose", "when", "where", "why", "how", "which",
	"is", "are", "was", "were", "do", "does", "did", "can", "could", "will",
	"would", "should",
}

var defaultRecencyCues = []string{
	"latest", "current", "today", "recent", "recently", "now", "news",
	"this year", "this month", "this week", "update", "upcoming",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// searchWorthy reports whether the message calls for fresh external evidence:
// it contains a question mark, opens with an interrogative, carries a
// recency cue or year token, or mentions an entity-like capitalized word
// beyond the sentence start.
func (o *Orchestrator) searchWorthy(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}

	if strings.ContainsAny(text, "?？") {
		return true
	}

	words := strings.Fields(normalized)
	if len(words) > 0 {
		first := strings.Trim(words[0], ",.!;:")
		for _, marker := range o.cfg.Interrogatives {
			if first == marker {
				return true
			}
		}
	}

	for _, cue := range o.cfg.RecencyCues {
		if strings.Contains(cue, " ") {
			if strings.Contains(normalized, cue) {
				return true
			}
			continue
		}
		for _, word := range words {
			if strings.Trim(word, ",.!;:?") == cue {
				return true
			}
		}
	}

	if yearPattern.MatchString(text) {
		return true
	}

	return hasEntityToken(text)
}

// hasEntityToken detects a capitalized word that is not the first token,
// a crude stand-in for a named entity.
func hasEntityToken(text string) bool {
	fields := strings.Fields(text)
	for i, field := range fields {
		if i == 0 {
			continue
		}
		trimmed := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed == "" {
			continue
		}
		runes := []rune(trimmed)
		if unicode.IsUpper(runes[0]) {
			return true
		}
	}
	return false
}
