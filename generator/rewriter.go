package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Rewriter turns extracted article text into a two-part channel post.
type Rewriter struct {
	llm    LLMClient
	opts   PromptOptions
	logger zerolog.Logger
}

func NewRewriter(llm LLMClient, opts PromptOptions, logger zerolog.Logger) (*Rewriter, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if opts.CaptionBudget <= 0 {
		return nil, errors.New("caption budget must be positive")
	}
	return &Rewriter{
		llm:    llm,
		opts:   opts,
		logger: logger.With().Str("component", "rewriter").Logger(),
	}, nil
}

// Rewrite sends one completion request and parses the reply. On failure it still returns
// a Content carrying operator-facing error text and a fallback image prompt, together
// with ErrModel or ErrFormat. PartOne of a successful result fits the caption budget.
func (r *Rewriter) Rewrite(ctx context.Context, title, body string) (Content, error) {
	raw, err := r.llm.Complete(ctx, BuildRewritePrompt(title, body, r.opts))
	if err != nil {
		r.logger.Error().Err(err).Msg("text model call failed")
		return Content{
			PartOne:     modelErrorText,
			PartTwo:     modelErrorText,
			ImagePrompt: FallbackImagePrompt,
		}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	content, err := ParseReply(raw)
	if err != nil {
		r.logger.Error().Err(err).Str("reply", raw).Msg("could not parse model reply")
		return Content{
			PartOne:     formatErrorText,
			PartTwo:     formatErrorText,
			ImagePrompt: FallbackImagePrompt,
		}, err
	}

	content = EnforceBudget(content, r.opts.CaptionBudget)
	if content.Moved > 0 {
		r.logger.Warn().Int("moved", content.Moved).Int("budget", r.opts.CaptionBudget).Msg("part 1 over caption budget, overflow moved to part 2")
	}
	return content, nil
}
