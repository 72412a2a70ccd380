package generator

import (
	"fmt"
	"strings"
)

// Prompt is a single-turn request to the text model.
type Prompt struct {
	System string
	User   string
}

// PromptOptions shapes the rewrite instruction.
type PromptOptions struct {
	ChannelName   string
	Language      string
	CaptionBudget int
}

// BuildRewritePrompt builds the system instruction for turning a raw article into a
// channel post. The article text itself goes in as the user message.
func BuildRewritePrompt(title, body string, opts PromptOptions) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are the lead science journalist and editor of the popular Telegram channel %q. ", opts.ChannelName))
	sb.WriteString(fmt.Sprintf("Turn the raw text of a news story into an engaging, easy-to-read post written in %s. ", opts.Language))
	sb.WriteString("Use a friendly but informative tone, short paragraphs and fitting emoji.\n")
	sb.WriteString(fmt.Sprintf("Article title: %q.\n\n", title))
	sb.WriteString("Rules:\n")
	sb.WriteString("- Markup: only <b>bold</b> and <i>italic</i> HTML tags. No Markdown, no other tags.\n")
	sb.WriteString(fmt.Sprintf("- PART 1 is the photo caption. It MUST NOT exceed %d characters including spaces and emoji.\n", opts.CaptionBudget))
	sb.WriteString("- PART 2 continues the post if the story needs more room. Leave it empty if PART 1 says everything.\n")
	sb.WriteString("- Finish with a detailed image generation prompt in ENGLISH that illustrates the story.\n\n")
	sb.WriteString("Reply strictly in this format:\n")
	sb.WriteString(MarkerPartOne + "\nCaption text...\n\n")
	sb.WriteString(MarkerPartTwo + "\nContinuation text (may be empty)...\n\n")
	sb.WriteString(MarkerImagePrompt + "\nPrompt text in English...")

	return Prompt{
		System: sb.String(),
		User:   body,
	}
}
