package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/fetcher"
	"github.com/5741327-hash/tesseractx-bot/generator"
	"github.com/5741327-hash/tesseractx-bot/metrics"
)

const (
	// PlaceholderImageURL is used when image synthesis fails.
	PlaceholderImageURL = "https://placehold.co/1024x1024.png"

	synthesisTimeout = 90 * time.Second
)

// LeadImageFinder looks up an image already published with an article.
type LeadImageFinder interface {
	FindLeadImage(ctx context.Context, rawURL string) string
}

// ImageResolver picks the draft image: the article's own lead image when there is one,
// otherwise a synthesized image, otherwise the placeholder. It never fails.
type ImageResolver struct {
	finder    LeadImageFinder
	generator generator.ImageGenerator
	logger    zerolog.Logger
}

func NewImageResolver(finder LeadImageFinder, gen generator.ImageGenerator, logger zerolog.Logger) *ImageResolver {
	return &ImageResolver{
		finder:    finder,
		generator: gen,
		logger:    logger.With().Str("component", "images").Logger(),
	}
}

// Page is article HTML already downloaded for a URL source, with the final URL after
// redirects.
type Page struct {
	HTML []byte
	URL  *url.URL
}

// Resolve returns the image URL for src. URL sources try the page's lead image first and
// only synthesize when none is found; text sources always synthesize. When page is set
// the lead image is read from it, otherwise the finder downloads the page again.
func (r *ImageResolver) Resolve(ctx context.Context, src Source, page *Page, prompt string) (string, draft.ImageOrigin) {
	if src.Kind == SourceURL {
		if img := r.leadImage(ctx, src, page); img != "" {
			r.logger.Info().Str("image", img).Msg("[image] using lead image")
			metrics.ImagesResolvedTotal.WithLabelValues(string(draft.ImageLead)).Inc()
			return img, draft.ImageLead
		}
	}
	imgURL, origin := r.Synthesize(ctx, prompt)
	metrics.ImagesResolvedTotal.WithLabelValues(string(origin)).Inc()
	return imgURL, origin
}

func (r *ImageResolver) leadImage(ctx context.Context, src Source, page *Page) string {
	if page != nil {
		return fetcher.LeadImageFromHTML(page.HTML, page.URL)
	}
	if r.finder != nil {
		return r.finder.FindLeadImage(ctx, src.Value)
	}
	return ""
}

// Synthesize asks the image model for one picture. Any failure yields the placeholder.
func (r *ImageResolver) Synthesize(ctx context.Context, prompt string) (string, draft.ImageOrigin) {
	if r.generator == nil {
		return PlaceholderImageURL, draft.ImagePlaceholder
	}
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	url, err := r.generator.Generate(ctx, prompt)
	if err != nil || url == "" {
		r.logger.Error().Err(err).Str("prompt", prompt).Msg("[image] synthesis failed, using placeholder")
		return PlaceholderImageURL, draft.ImagePlaceholder
	}
	r.logger.Info().Str("image", url).Msg("[image] synthesized")
	return url, draft.ImageSynthesized
}
