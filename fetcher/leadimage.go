package fetcher

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	socialImageSel = cascadia.MustCompile(`meta[property="og:image"], meta[name="og:image"]`)
	baseHrefSel    = cascadia.MustCompile(`base[href]`)
	heroImageSel   = cascadia.MustCompile(`img[class*="main" i], img[class*="hero" i], img[class*="featured" i], img[class*="post" i]`)
)

// FindLeadImage fetches the page with the image-lookup timeout and returns its lead image
// URL. An empty result means no image was found, including when the page could not be
// fetched; callers fall back to synthesis.
func (f *Fetcher) FindLeadImage(ctx context.Context, rawURL string) string {
	page, pageURL, err := f.fetch(ctx, rawURL, f.opts.ImageTimeout)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", rawURL).Msg("lead image lookup failed, falling back to synthesis")
		return ""
	}
	img := LeadImageFromHTML(page, pageURL)
	if img == "" {
		f.logger.Info().Str("url", rawURL).Msg("no lead image on page")
	}
	return img
}

// LeadImageFromHTML returns the og:image metadata value, or else the source of the first
// <img> whose class hints at a main/hero/featured/post role. Relative URLs are resolved
// against the document base. Returns "" if neither exists.
func LeadImageFromHTML(page []byte, pageURL *url.URL) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	base := documentBase(doc, pageURL)

	if meta := socialImageSel.MatchFirst(doc); meta != nil {
		if u := resolve(base, attr(meta, "content")); u != "" {
			return u
		}
	}

	for _, img := range heroImageSel.MatchAll(doc) {
		src := attr(img, "src")
		if src == "" || strings.HasPrefix(src, "data:") {
			// lazy-loaded images keep the real source in data-src
			src = attr(img, "data-src")
		}
		if u := resolve(base, src); u != "" {
			return u
		}
	}
	return ""
}

func documentBase(doc *html.Node, pageURL *url.URL) *url.URL {
	if n := baseHrefSel.MatchFirst(doc); n != nil {
		if href, err := url.Parse(strings.TrimSpace(attr(n, "href"))); err == nil {
			if pageURL == nil {
				return href
			}
			return pageURL.ResolveReference(href)
		}
	}
	return pageURL
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
