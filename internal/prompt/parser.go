package prompt

import (
	"encoding/json"
	"strings"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/scrape"
)

type enhancedPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParseEnhanced validates a raw model response against the two-string JSON
// contract. Models wrap replies in markdown fences or leading prose, so the
// first balanced {...} block is extracted before unmarshalling. Any parse
// trouble degrades to the original text; this function never fails.
func ParseEnhanced(response string, original domain.ActivityData) (title, description string) {
	title = original.Title
	description = original.Description

	block, ok := ExtractJSONBlock(response)
	if !ok {
		return title, description
	}

	var payload enhancedPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return title, description
	}

	// Per-field fallback: a missing or empty key keeps the original value.
	if t := strings.TrimSpace(payload.Title); t != "" {
		title = t
	}
	if d := strings.TrimSpace(payload.Description); d != "" {
		description = d
	}

	title = scrape.TruncateAtWordBoundary(title, constants.ContentLimits.TitleMax)
	description = scrape.TruncateAtWordBoundary(description, constants.ContentLimits.DescriptionMax)

	return title, description
}

// ExtractJSONBlock returns the first balanced top-level {...} block in the
// text, tolerating markdown code fences and surrounding prose. Braces inside
// JSON strings do not count toward the balance.
func ExtractJSONBlock(text string) (string, bool) {
	cleaned := stripFences(strings.TrimSpace(text))

	start := strings.IndexByte(cleaned, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}

	return "", false
}

func stripFences(text string) string {
	cleaned := text
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}
