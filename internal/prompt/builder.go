// Package prompt assembles the system message and user prompt sent to a
// text-generation provider.
//
// The prompt package resolves tones and platforms to descriptive guidance,
// computes per-platform character budgets, and states the numbered-item
// formatting contract the response parser depends on. Tone descriptors,
// platform guidance, and the system message are configurable with built-in
// defaults.
package prompt

import (
	"fmt"
	"strings"
)

const (
	// ItemCount is the number of caption options requested per platform.
	ItemCount = 3

	// reservedMargin is subtracted from each platform's character limit to
	// leave room for hashtag substitution by the caller.
	reservedMargin = 200

	// minBudget is the floor for the effective character budget.
	minBudget = 20

	// HashtagPlaceholder is the literal token every generated item must end
	// with; the caller substitutes real hashtags later.
	HashtagPlaceholder = "{hashtags}"
)

// defaultSystemMessage frames the model as a social content writer.
const defaultSystemMessage = "You are a social media copywriter. You write short, " +
	"platform-appropriate caption options for content creators. You follow the " +
	"formatting rules in the request exactly, because your output is parsed by a machine."

// defaultToneDescriptors maps tone names to the human-readable descriptors
// embedded in the prompt.
var defaultToneDescriptors = map[string]string{
	"casual":        "friendly, conversational, approachable",
	"professional":  "polished, credible, informative",
	"humorous":      "playful, witty, lighthearted",
	"inspirational": "uplifting, motivating, evocative",
	"edgy":          "bold, provocative, unconventional",
}

// defaultPlatformGuidance maps platform names to formatting hints.
var defaultPlatformGuidance = map[string]string{
	"short-form": "very concise, punchy, built for fast scrolling",
	"long-form":  "room to tell a story, conversational paragraphs are fine",
	"instagram":  "visual-first, line breaks welcome, lead with a hook",
	"linkedin":   "professional audience, value-forward, no clickbait",
	"tiktok":     "trend-aware, energetic, speaks to a young audience",
}

// Config carries externally supplied prompt overrides. Empty fields and
// missing map keys fall back to the built-in defaults.
type Config struct {
	SystemMessage    string
	ToneDescriptors  map[string]string
	PlatformGuidance map[string]string
}

// ToneDescriptor resolves a tone name to its descriptor, preferring the
// configured override. An unknown tone resolves to the casual descriptor
// rather than failing.
func (c Config) ToneDescriptor(tone string) string {
	if d, ok := c.ToneDescriptors[tone]; ok && d != "" {
		return d
	}
	if d, ok := defaultToneDescriptors[tone]; ok {
		return d
	}
	return defaultToneDescriptors["casual"]
}

// Guidance resolves a platform name to its formatting hints, preferring the
// configured override.
func (c Config) Guidance(platform string) string {
	if g, ok := c.PlatformGuidance[platform]; ok && g != "" {
		return g
	}
	if g, ok := defaultPlatformGuidance[platform]; ok {
		return g
	}
	return "general-purpose social post"
}

func (c Config) systemMessage() string {
	if c.SystemMessage != "" {
		return c.SystemMessage
	}
	return defaultSystemMessage
}

// Budget computes the effective character budget for a platform limit,
// reserving margin for hashtag insertion and clamping at a sane minimum.
func Budget(characterLimit int) int {
	budget := characterLimit - reservedMargin
	if budget < minBudget {
		budget = minBudget
	}
	return budget
}

// Build assembles the prompt pair for a single platform.
func Build(description, tone, platform string, characterLimit int, cfg Config) (systemMessage, userPrompt string) {
	var b strings.Builder

	writeRequestHeader(&b, description, tone, cfg)
	writePlatformBlock(&b, platform, characterLimit, cfg)
	b.WriteString("\n")
	writeRules(&b, Budget(characterLimit))
	writeExample(&b)

	return cfg.systemMessage(), b.String()
}

// BuildBatch assembles one prompt spanning several platforms, demanding a
// labeled section per platform, each following the same numbered-item
// contract.
func BuildBatch(description, tone string, platforms []string, limits map[string]int, cfg Config) (systemMessage, userPrompt string) {
	if len(platforms) == 1 {
		return Build(description, tone, platforms[0], limits[platforms[0]], cfg)
	}

	var b strings.Builder

	writeRequestHeader(&b, description, tone, cfg)
	for _, platform := range platforms {
		writePlatformBlock(&b, platform, limits[platform], cfg)
	}
	b.WriteString("\n")

	b.WriteString("Respond with one section per platform. Start each section with the ")
	b.WriteString("platform name followed by a colon on its own line, then the numbered ")
	b.WriteString("options for that platform.\n\n")

	writeRules(&b, 0)
	b.WriteString("- Respect each platform's own character budget, stated above.\n")
	b.WriteString("\nExample:\n\n")
	fmt.Fprintf(&b, "%s:\n", platforms[0])
	b.WriteString("1. Golden light spilling over the ridge tonight " + HashtagPlaceholder + "\n")
	b.WriteString("2. Some views are worth the climb " + HashtagPlaceholder + "\n")
	b.WriteString("3. Saving this sky for the hard days " + HashtagPlaceholder + "\n")

	return cfg.systemMessage(), b.String()
}

func writeRequestHeader(b *strings.Builder, description, tone string, cfg Config) {
	fmt.Fprintf(b, "Description: %q\n", description)
	fmt.Fprintf(b, "Tone: %s (%s)\n", tone, cfg.ToneDescriptor(tone))
}

func writePlatformBlock(b *strings.Builder, platform string, characterLimit int, cfg Config) {
	fmt.Fprintf(b, "Platform: %s\n", platform)
	fmt.Fprintf(b, "Guidance: %s\n", cfg.Guidance(platform))
	fmt.Fprintf(b, "Character budget: %d characters per option\n", Budget(characterLimit))
}

// writeRules states the formatting contract. This block is the single most
// important part of the prompt: the parser keys off numbered markers and the
// trailing placeholder.
func writeRules(b *strings.Builder, budget int) {
	fmt.Fprintf(b, "Write exactly %d caption options for the content described above.\n\n", ItemCount)
	b.WriteString("Rules:\n")
	fmt.Fprintf(b, "- Number each option (\"1.\", \"2.\", \"3.\") and keep one option per line.\n")
	b.WriteString("- Plain text only. No markdown, asterisks, or other markup.\n")
	fmt.Fprintf(b, "- End every option with the literal placeholder %s.\n", HashtagPlaceholder)
	if budget > 0 {
		fmt.Fprintf(b, "- Keep each option within %d characters, including the placeholder.\n", budget)
	}
}

func writeExample(b *strings.Builder) {
	b.WriteString("\nExample:\n\n")
	b.WriteString("1. Golden light spilling over the ridge tonight " + HashtagPlaceholder + "\n")
	b.WriteString("2. Some views are worth the climb " + HashtagPlaceholder + "\n")
	b.WriteString("3. Saving this sky for the hard days " + HashtagPlaceholder + "\n")
}
