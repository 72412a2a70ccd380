package generator

import (
	"context"
	"strings"
)

// MockLLM is a local stand-in that never calls an external model. It echoes the start of
// the article back in the expected three-marker layout.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	lead := []rune(strings.TrimSpace(prompt.User))
	if len(lead) > 300 {
		lead = lead[:300]
	}

	var sb strings.Builder
	sb.WriteString(MarkerPartOne + "\n")
	sb.WriteString("<b>Draft preview</b>\n\n")
	sb.WriteString(string(lead))
	sb.WriteString("\n\n" + MarkerPartTwo + "\n\n")
	sb.WriteString(MarkerImagePrompt + "\n")
	sb.WriteString(FallbackImagePrompt)
	return sb.String(), nil
}

// MockImages returns a fixed image URL.
type MockImages struct {
	URL string
}

func (m MockImages) Generate(context.Context, string) (string, error) {
	if m.URL == "" {
		return "https://placehold.co/1024x1024.png", nil
	}
	return m.URL, nil
}
