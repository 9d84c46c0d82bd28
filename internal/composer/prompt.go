package composer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalambet/solace/internal/lang"
)

const (
	defaultMaxContextTokens = 4000

	// DefaultPersonality is used when the caller does not describe one.
	DefaultPersonality = "supportive and compassionate"
)

// Prompt tags understood by the hosted inference endpoints.
const (
	TagEmotion   = "emotion: "
	TagEmotionFR = "émotion: "
	TagChat      = "chat: "
)

var (
	questionLead = regexp.MustCompile(`^(why|what|how|when|where|who|can|is|do)\b`)
	emotional    = regexp.MustCompile(`(?i)(feel|i am|forgot|lost|scared|sad|lonely)`)
)

// BuildPrompt tags text for the hosted endpoints. French input always
// carries the emotion tag; English input is tagged by content.
func BuildPrompt(text string, language lang.Tag) string {
	if language == lang.French {
		return TagEmotionFR + text
	}
	lower := strings.ToLower(text)
	switch {
	case emotional.MatchString(lower):
		return TagEmotion + text
	case questionLead.MatchString(lower):
		return TagChat + text
	default:
		return TagChat + text
	}
}

// PersonaPrompt builds the general-purpose model prompt. When useContext is
// set the dataset context is included even if it is empty.
func PersonaPrompt(personality, text, datasetContext string, useContext bool) string {
	if personality == "" {
		personality = DefaultPersonality
	}
	if useContext {
		return fmt.Sprintf("%s. Use context:\n%s\nUser: %s", personality, datasetContext, text)
	}
	return fmt.Sprintf("%s. User: %s", personality, text)
}

// Composer bounds operator-supplied grounding text before it is injected
// into a persona prompt.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// FitContext returns datasetContext trimmed to the token budget. Whole
// lines are kept while they fit; a single oversized first line is cut at
// the budget.
func (c *Composer) FitContext(datasetContext string) string {
	if EstimateTokens(datasetContext) <= c.MaxContextTokens {
		return datasetContext
	}

	var sb strings.Builder
	remaining := c.MaxContextTokens
	for _, line := range strings.SplitAfter(datasetContext, "\n") {
		tokens := EstimateTokens(line)
		if tokens > remaining {
			break
		}
		sb.WriteString(line)
		remaining -= tokens
	}
	if sb.Len() == 0 {
		return truncateRunes(datasetContext, c.MaxContextTokens*4)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Prompt is PersonaPrompt with the dataset context fitted to the budget.
func (c *Composer) Prompt(personality, text, datasetContext string, useContext bool) string {
	return PersonaPrompt(personality, text, c.FitContext(datasetContext), useContext)
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	end := maxBytes
	for end > 0 && !isRuneStart(s[end]) {
		end--
	}
	return s[:end]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
