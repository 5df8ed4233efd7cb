package graph

import (
	"strings"
	"unicode"
)

// stopwords never become graph nodes. Conversational filler only; domain
// terms stay.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "this": true, "that": true, "with": true, "from": true,
	"have": true, "has": true, "had": true, "but": true, "not": true,
	"you": true, "your": true, "they": true, "them": true, "his": true,
	"her": true, "its": true, "our": true, "about": true, "into": true,
	"would": true, "could": true, "should": true, "there": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"will": true, "can": true, "just": true, "like": true, "very": true,
	"been": true, "being": true, "does": true, "did": true, "doing": true,
}

// NormalizeConcept lowercases and trims a concept identifier. Dots are
// kept: they delimit hierarchy (e.g. "food.fruit").
func NormalizeConcept(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
}

// ExtractConcepts tokenizes free text into normalized concept
// identifiers, deduplicated in order of first appearance.
func ExtractConcepts(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-'
	})

	seen := make(map[string]bool, len(fields))
	var concepts []string
	for _, f := range fields {
		c := NormalizeConcept(f)
		if len(c) < 3 || stopwords[c] {
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		concepts = append(concepts, c)
	}
	return concepts
}
