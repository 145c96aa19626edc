// Package prompt turns source text into a snippet-extraction request and parses the reply.
package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Delimiter separates snippets in the provider reply.
const Delimiter = "---"

// Snippet batch bounds.
const (
	MinSnippets = 1
	MaxSnippets = 10
)

// MaxOutputTokens caps the scaled max-tokens value sent to the provider.
const MaxOutputTokens = 2000

// Message roles used in the assembled payload.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CoreSystemPrompt is the fixed extraction instruction.
const CoreSystemPrompt = `You are an expert at extracting compelling, standalone insights from longer content. Your goal is to identify the most interesting, impactful, and thought-provoking moments that would resonate with an audience.

Core Guidelines:
- Extract key ideas, fascinating facts, or powerful statements that stand alone
- Each snippet should be complete and understandable on its own
- Focus on what's interesting, surprising, or emotionally resonant
- Maintain accuracy - never add information not in the source
- Use clear, engaging language that draws readers in
- Each snippet should feel natural and authentic`

// Message is one chat message of the provider payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Plan is the assembled extraction request.
type Plan struct {
	Messages     []Message
	SnippetCount int
}

// band maps a word-count upper bound (exclusive) to a snippet count.
type band struct {
	below int
	count int
}

var snippetBands = []band{
	{below: 300, count: 1},
	{below: 600, count: 2},
	{below: 1200, count: 3},
	{below: 2000, count: 5},
	{below: 3000, count: 7},
}

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SnippetCount derives how many snippets to request for the text.
func SnippetCount(text string) int {
	words := WordCount(text)
	for _, b := range snippetBands {
		if words < b.below {
			return b.count
		}
	}
	return MaxSnippets
}

// Build assembles the system and user messages for text. format and persona are optional.
func Build(text, format, persona string) Plan {
	count := SnippetCount(text)

	var system strings.Builder
	system.WriteString(CoreSystemPrompt)
	if f := strings.TrimSpace(format); f != "" {
		system.WriteString("\n\nOutput Format for Each Snippet: ")
		system.WriteString(f)
	}
	if p := strings.TrimSpace(persona); p != "" {
		system.WriteString("\n\nTone/Style: ")
		system.WriteString(p)
	}

	user := fmt.Sprintf(`Extract %d distinct, compelling snippets from the following text. Each snippet should be independent and capture a different interesting aspect, idea, or moment.

Present each snippet on its own line, separated by "%s"

Text:
%s`, count, Delimiter, text)

	return Plan{
		Messages: []Message{
			{Role: RoleSystem, Content: system.String()},
			{Role: RoleUser, Content: user},
		},
		SnippetCount: count,
	}
}

// ScaleMaxTokens multiplies the requested per-snippet budget by count, capped at MaxOutputTokens.
func ScaleMaxTokens(requested, count int) int {
	if requested <= 0 || count <= 0 {
		return 0
	}
	// Compare before multiplying so oversized requests cannot overflow.
	if requested > MaxOutputTokens/count {
		return MaxOutputTokens
	}
	return min(requested*count, MaxOutputTokens)
}

// ParseSnippets splits a reply on Delimiter, trims each piece and drops empty ones.
//
// When nothing survives, the whole trimmed reply is returned as the only snippet, so the
// result always has at least one element (an empty reply yields [""]). At most MaxSnippets
// are returned.
func ParseSnippets(reply string) []string {
	snippets := lo.FilterMap(strings.Split(reply, Delimiter), func(piece string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(piece)
		return trimmed, trimmed != ""
	})
	if len(snippets) == 0 {
		return []string{strings.TrimSpace(reply)}
	}
	if len(snippets) > MaxSnippets {
		snippets = snippets[:MaxSnippets]
	}
	return snippets
}
