package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/extractor"
	"github.com/5741327-hash/tesseractx-bot/generator"
	"github.com/5741327-hash/tesseractx-bot/pipeline"
	"github.com/5741327-hash/tesseractx-bot/publisher"
)

const (
	refusalText    = "⛔️ You are not the operator of this bot. Request rejected."
	noDraftText    = "No draft to publish. Send a link or article text to create one."
	noDraftShow    = "No draft is staged."
	unknownCmdText = "Unknown command. /start lists what I can do."
	replacedText   = "ℹ️ The previous draft was replaced by this one."
)

func helpText(channel string, minLen int) string {
	return fmt.Sprintf("✨ The %q bot is running!\n\n"+
		"Workflow:\n"+
		"1. Send /wake if the bot has been asleep for a while.\n"+
		"2. Send a link to an article, or paste at least %d characters of text.\n"+
		"3. Check the draft and send /publish.\n\n"+
		"/draft shows the staged draft again.", channel, minLen)
}

func wakeText(minLen int) string {
	return fmt.Sprintf("✨ Server is awake! Send a link or at least %d characters of text.", minLen)
}

func startURLText(url string) string {
	return fmt.Sprintf("⏳ Processing link: %s\n\n1. Parsing the article...", url)
}

func progressText(src pipeline.Source, ev pipeline.Event) string {
	switch ev.Kind {
	case pipeline.EventExtracted:
		if src.Kind == pipeline.SourceText {
			return "✅ Text accepted. 2. Rewriting with the model..."
		}
		return fmt.Sprintf("✅ Article parsed: %s\n2. Rewriting with the model...", ev.Title)
	case pipeline.EventRewritten:
		return "✅ Post written. 3. Preparing the image..."
	case pipeline.EventBudgetEnforced:
		return fmt.Sprintf("⚠️ Part 1 was over the caption limit; %d characters were moved to part 2.", ev.Moved)
	}
	return ""
}

func tooShortText(err error) string {
	return fmt.Sprintf("✋ Text is too short to post (%v). Send a link or a longer text.", err)
}

// abortText is the single reply sent when a run stops.
func abortText(err error) string {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return fmt.Sprintf("❌ Processing failed: %v", err)
	}
	switch se.Stage {
	case pipeline.StageFetch:
		return fmt.Sprintf("❌ Could not download the article: %v", se.Err)
	case pipeline.StageExtract:
		if errors.Is(se.Err, extractor.ErrBodyNotFound) {
			return "❌ Parsing failed: " + extractor.BodyNotFound
		}
		return fmt.Sprintf("❌ Parsing failed: %v", se.Err)
	case pipeline.StageRewrite:
		if errors.Is(se.Err, generator.ErrFormat) {
			return fmt.Sprintf("❌ AI formatting error: the model reply did not follow the expected layout. Any staged draft is unchanged.\n(%v)", se.Err)
		}
		return fmt.Sprintf("❌ AI generation error: %v. Any staged draft is unchanged.", se.Err)
	}
	return fmt.Sprintf("❌ %v", err)
}

func publishedText(channel string) string {
	return fmt.Sprintf("🚀 Published to %q!", channel)
}

func publishFailedText(err error) string {
	var de *publisher.DeliveryError
	switch {
	case errors.As(err, &de) && de.PhotoLive:
		return fmt.Sprintf("❌ The photo with part 1 is already live in %s, but part 2 failed: %v\nThe draft is kept; send /publish to send only part 2.", de.Destination, de.Err)
	case de != nil:
		return fmt.Sprintf("❌ Publishing to the channel failed. Check the channel id (%s) and the bot's rights: %v\nThe draft is kept; send /publish to retry.", de.Destination, de.Err)
	}
	return fmt.Sprintf("❌ Publishing failed: %v", err)
}

// previewCaption is the operator-facing photo caption for a staged draft. Draft parts
// are already sanitized HTML.
func previewCaption(d draft.Draft) string {
	var sb strings.Builder
	sb.WriteString("<b>[Draft]</b>\n\n")
	sb.WriteString(d.PartOne)
	if d.HasContinuation() {
		sb.WriteString("\n\n<i>(part 2 follows in the next message)</i>")
	}
	sb.WriteString("\n\n/publish to publish")
	return sb.String()
}

func previewContinuation(d draft.Draft) string {
	return "<b>[Draft, part 2]</b>\n\n" + d.PartTwo
}

func previewFallback(d draft.Draft, err error) string {
	return fmt.Sprintf("❌ The image could not be loaded (%s): %s\n\nDraft text:\n%s",
		html.EscapeString(d.ImageURL), html.EscapeString(err.Error()), previewCaption(d))
}
