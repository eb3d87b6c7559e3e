// Package parse extracts structured caption items from free-form model
// output.
//
// Model output is never trusted to follow the prompt contract exactly, so
// parsing is best-effort in three ordered tiers: numbered-list lines, then
// blank-line paragraphs, then the whole text as a single item. Parsing never
// fails; a degraded result beats failing the request over a formatting quirk.
package parse

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxItems bounds the result regardless of which tier produced it.
	maxItems = 5

	// minParagraphLen is the shortest paragraph the fallback tier keeps.
	minParagraphLen = 10
)

// Item is a single generated caption with its character count. Counts are
// Unicode code points, not bytes, so emoji and non-ASCII text count
// correctly.
type Item struct {
	Text           string `json:"text"`
	CharacterCount int    `json:"character_count"`
}

var numberedMarker = regexp.MustCompile(`^\s*\d+[.)]\s*`)

// Items parses raw model output into caption items. It always returns at
// least one item; for empty input that item has empty text.
func Items(raw string) []Item {
	items := numberedItems(raw)

	if len(items) == 0 {
		items = paragraphItems(raw)
	}

	if len(items) == 0 {
		items = []Item{newItem(strings.TrimSpace(raw))}
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// numberedItems is the primary tier: lines beginning with a numbered-list
// marker, per the prompt contract.
func numberedItems(raw string) []Item {
	var items []Item
	for _, line := range strings.Split(raw, "\n") {
		if !numberedMarker.MatchString(line) {
			continue
		}
		text := numberedMarker.ReplaceAllString(line, "")
		text = stripQuotes(strings.TrimSpace(text))
		if text == "" {
			continue
		}
		items = append(items, newItem(text))
	}
	return items
}

// paragraphItems is the fallback tier: blank-line-delimited paragraphs above
// a minimum length.
func paragraphItems(raw string) []Item {
	var items []Item
	for _, paragraph := range regexp.MustCompile(`\n\s*\n`).Split(raw, -1) {
		text := strings.TrimSpace(paragraph)
		if utf8.RuneCountInString(text) <= minParagraphLen {
			continue
		}
		items = append(items, newItem(text))
	}
	return items
}

// Sections runs the tiered parse per labeled platform section. Section
// headers are platform names recognized case-insensitively on their own
// line, with optional trailing colon and surrounding emphasis characters.
// Platforms with no recognizable section fall back to parsing the whole
// text.
func Sections(raw string, platforms []string) map[string][]Item {
	sections := splitSections(raw, platforms)

	result := make(map[string][]Item, len(platforms))
	for _, platform := range platforms {
		body, found := sections[platform]
		if !found || strings.TrimSpace(body) == "" {
			result[platform] = Items(raw)
			continue
		}
		result[platform] = Items(body)
	}
	return result
}

// splitSections maps each platform to the text between its header line and
// the next recognized header.
func splitSections(raw string, platforms []string) map[string]string {
	lower := make(map[string]string, len(platforms))
	for _, p := range platforms {
		lower[strings.ToLower(p)] = p
	}

	sections := make(map[string]string)
	current := ""
	var body strings.Builder

	flush := func() {
		if current != "" {
			sections[current] = body.String()
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		header := strings.ToLower(strings.Trim(strings.TrimSpace(line), "*#_: "))
		if platform, ok := lower[header]; ok {
			flush()
			current = platform
			continue
		}
		if current != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return sections
}

func newItem(text string) Item {
	return Item{
		Text:           text,
		CharacterCount: utf8.RuneCountInString(text),
	}
}

// stripQuotes removes one matching pair of surrounding quotes.
func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}}
	for _, pair := range pairs {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
