package ai

import (
	"sort"
	"strings"
)

// Default tags used when classification fails or returns garbage.
const (
	DefaultType  = "newsletter"
	DefaultTopic = "general"
)

var typeVocab = map[string]bool{
	"newsletter":    true,
	"promo":         true,
	"personal":      true,
	"informational": true,
}

var topicVocab = map[string]bool{
	"technology":    true,
	"business":      true,
	"finance":       true,
	"science":       true,
	"health":        true,
	"culture":       true,
	"politics":      true,
	"sports":        true,
	"travel":        true,
	"food":          true,
	"education":     true,
	"entertainment": true,
	"general":       true,
}

// CoerceType maps a model answer into the type vocabulary.
func CoerceType(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if typeVocab[tag] {
		return tag
	}
	return DefaultType
}

// CoerceTopic maps a model answer into the topic vocabulary.
func CoerceTopic(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if topicVocab[tag] {
		return tag
	}
	return DefaultTopic
}

// Words that make bad image searches: generic, branded, or promotional.
var bannedKeywords = map[string]bool{
	"email":       true,
	"newsletter":  true,
	"subscribe":   true,
	"unsubscribe": true,
	"click":       true,
	"free":        true,
	"offer":       true,
	"sale":        true,
	"deal":        true,
	"news":        true,
	"update":      true,
	"daily":       true,
	"weekly":      true,
}

// Stopwords excluded by the fallback extractor.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true,
	"with": true, "that": true, "this": true, "from": true, "have": true,
	"are": true, "was": true, "were": true, "will": true, "can": true,
	"but": true, "not": true, "all": true, "our": true, "out": true,
	"has": true, "its": true, "about": true, "more": true, "what": true,
	"when": true, "how": true, "why": true, "who": true, "their": true,
	"they": true, "them": true, "been": true, "than": true, "then": true,
	"into": true, "over": true, "just": true, "like": true, "also": true,
	"here": true, "there": true, "now": true, "new": true, "get": true,
	"one": true, "two": true, "his": true, "her": true, "she": true,
}

// SanitizeKeyword trims a model keyword to at most three clean words,
// dropping banned terms. Returns empty when nothing usable remains.
// Parameters:
//   - raw: keyword phrase from the model.
// Returns:
//   - string: cleaned phrase or "".
func SanitizeKeyword(raw string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(raw)) {
		w = strings.Trim(w, `.,!?"'():;`)
		if w == "" || bannedKeywords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	return strings.Join(words, " ")
}

// FallbackKeyword derives a search phrase from the content itself by
// picking the two most frequent non-stopword words. Used when the model
// call fails; it always returns something searchable.
// Parameters:
//   - content: plain text email content.
// Returns:
//   - string: 1 to 2 word phrase, "abstract background" when the text is empty.
func FallbackKeyword(content string) string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, `.,!?"'():;*#[]<>`)
		if len(w) < 4 || stopwords[w] || bannedKeywords[w] {
			continue
		}
		if strings.ContainsAny(w, "0123456789@/\\=") {
			continue
		}
		counts[w]++
	}
	if len(counts) == 0 {
		return "abstract background"
	}

	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) == 1 {
		return ranked[0].word
	}
	return ranked[0].word + " " + ranked[1].word
}
