// Package pipeline turns an operator submission into a staged draft.
package pipeline

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/extractor"
	"github.com/5741327-hash/tesseractx-bot/formatter"
	"github.com/5741327-hash/tesseractx-bot/generator"
	"github.com/5741327-hash/tesseractx-bot/metrics"
)

const rewriteTimeout = 2 * time.Minute

// PageFetcher downloads article HTML.
type PageFetcher interface {
	FetchHTML(ctx context.Context, rawURL string) ([]byte, *url.URL, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, title, body string) (generator.Content, error)
}

// EventKind identifies a progress notification emitted during a run.
type EventKind int

const (
	EventExtracted EventKind = iota
	EventRewritten
	EventBudgetEnforced
	EventImageResolved
)

// Event is a progress notification. Moved is set for EventBudgetEnforced, Origin for
// EventImageResolved.
type Event struct {
	Kind   EventKind
	Title  string
	Moved  int
	Origin draft.ImageOrigin
}

// Reporter receives progress events. It may be nil.
type Reporter func(ctx context.Context, ev Event)

// Result describes a successfully staged draft.
type Result struct {
	Draft    draft.Draft
	Replaced bool
	Moved    int
}

type Options struct {
	MinManualLength int
}

// Pipeline runs fetch, extract, rewrite, render and image resolution, then stages the
// result. A failed run never touches the currently staged draft.
type Pipeline struct {
	fetcher  PageFetcher
	rewriter Rewriter
	images   *ImageResolver
	store    *draft.Store
	opts     Options
	logger   zerolog.Logger
}

func New(fetcher PageFetcher, rewriter Rewriter, images *ImageResolver, store *draft.Store, opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if fetcher == nil || rewriter == nil || images == nil || store == nil {
		return nil, errors.New("pipeline needs a fetcher, rewriter, image resolver and draft store")
	}
	if opts.MinManualLength <= 0 {
		opts.MinManualLength = DefaultMinManualLength
	}
	return &Pipeline{
		fetcher:  fetcher,
		rewriter: rewriter,
		images:   images,
		store:    store,
		opts:     opts,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run processes src. Errors are ErrInputTooShort (nothing ran) or a *StageError naming
// the step that failed.
func (p *Pipeline) Run(ctx context.Context, src Source, report Reporter) (Result, error) {
	if report == nil {
		report = func(context.Context, Event) {}
	}
	log := p.logger.With().Str("source", src.Kind.String()).Logger()

	if err := src.checkLength(p.opts.MinManualLength); err != nil {
		log.Info().Err(err).Msg("[pipeline] rejected")
		metrics.PipelineRunsTotal.WithLabelValues(src.Kind.String(), "too_short").Inc()
		return Result{}, err
	}

	article, page, err := p.article(ctx, src)
	if err != nil {
		return Result{}, p.abort(log, src, err)
	}
	report(ctx, Event{Kind: EventExtracted, Title: article.Title})

	rctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	content, err := p.rewriter.Rewrite(rctx, article.Title, article.Body)
	cancel()
	if err != nil {
		return Result{}, p.abort(log, src, &StageError{Stage: StageRewrite, Err: err})
	}
	report(ctx, Event{Kind: EventRewritten, Title: article.Title})
	if content.Moved > 0 {
		report(ctx, Event{Kind: EventBudgetEnforced, Moved: content.Moved})
	}

	imageURL, origin := p.images.Resolve(ctx, src, page, content.ImagePrompt)
	report(ctx, Event{Kind: EventImageResolved, Origin: origin})

	d := draft.Draft{
		PartOne:     formatter.Render(content.PartOne),
		PartTwo:     formatter.Render(content.PartTwo),
		ImageURL:    imageURL,
		Source:      sourceLabel(src, article),
		ImageOrigin: origin,
	}
	replaced := p.store.Stage(d)
	d, _ = p.store.Peek()

	log.Info().Str("title", article.Title).Str("image_origin", string(origin)).Bool("replaced", replaced).Msg("[pipeline] draft staged")
	metrics.PipelineRunsTotal.WithLabelValues(src.Kind.String(), "staged").Inc()
	return Result{Draft: d, Replaced: replaced, Moved: content.Moved}, nil
}

func (p *Pipeline) article(ctx context.Context, src Source) (extractor.Article, *Page, error) {
	if src.Kind == SourceText {
		return extractor.Manual(src.Value), nil, nil
	}

	html, finalURL, err := p.fetcher.FetchHTML(ctx, src.Value)
	if err != nil {
		return extractor.Article{}, nil, &StageError{Stage: StageFetch, Err: err}
	}
	// A page without a recognisable body stops here; the model never sees the
	// placeholder text.
	article, err := extractor.Extract(html)
	if err != nil {
		return article, nil, &StageError{Stage: StageExtract, Err: err}
	}
	return article, &Page{HTML: html, URL: finalURL}, nil
}

func (p *Pipeline) abort(log zerolog.Logger, src Source, err error) error {
	outcome := "failed"
	var se *StageError
	if errors.As(err, &se) {
		outcome = string(se.Stage) + "_failed"
	}
	log.Error().Err(err).Msg("[pipeline] aborted")
	metrics.PipelineRunsTotal.WithLabelValues(src.Kind.String(), outcome).Inc()
	return err
}

func sourceLabel(src Source, a extractor.Article) string {
	if src.Kind == SourceURL {
		return src.Value
	}
	return a.Title
}
