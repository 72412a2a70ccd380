// Package extractor reduces a page, or pasted text, to the title and paragraph text the
// rewriter works from.
package extractor

import (
	"bytes"
	"errors"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// UntitledArticle is used when a page has no <h1>.
	UntitledArticle = "Untitled article"
	// ManualTitle is the title given to pasted text.
	ManualTitle = "Operator note"
	// BodyNotFound replaces the body when no content container could be located.
	BodyNotFound = "Could not find the main article block on the page."
)

// ErrBodyNotFound is returned alongside an Article whose Body is BodyNotFound. The title
// is still filled in so the caller can name the page when reporting.
var ErrBodyNotFound = errors.New("article body not found")

// Article is the extracted model input.
type Article struct {
	Title string
	// Body is a blank-line-joined sequence of non-empty paragraphs.
	Body string
}

var (
	headingSel = cascadia.MustCompile("h1")
	// containers are tried in order; the first selector with a match wins.
	containerSels = []cascadia.Selector{
		cascadia.MustCompile("article"),
		cascadia.MustCompile("main"),
		cascadia.MustCompile(`div[class*="content" i], div[class*="body" i], div[class*="post" i], div[class*="article" i]`),
	}
	paragraphSel = cascadia.MustCompile("p")
)

// Extract finds the title and paragraph text of an article page.
func Extract(page []byte) (Article, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return Article{}, err
	}

	title := UntitledArticle
	if h1 := headingSel.MatchFirst(doc); h1 != nil {
		if t := collapse(textOf(h1)); t != "" {
			title = t
		}
	}

	var container *html.Node
	for _, sel := range containerSels {
		if container = sel.MatchFirst(doc); container != nil {
			break
		}
	}
	if container == nil {
		return Article{Title: title, Body: BodyNotFound}, ErrBodyNotFound
	}

	stripBoilerplate(container)

	var paragraphs []string
	for _, p := range paragraphSel.MatchAll(container) {
		if t := strings.TrimSpace(textOf(p)); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	if len(paragraphs) == 0 {
		return Article{Title: title, Body: BodyNotFound}, ErrBodyNotFound
	}
	return Article{Title: title, Body: strings.Join(paragraphs, "\n\n")}, nil
}

// Manual wraps pasted text as an article without any HTML parsing.
func Manual(text string) Article {
	return Article{Title: ManualTitle, Body: strings.TrimSpace(text)}
}

// stripBoilerplate removes script, style, nav and footer subtrees in place.
func stripBoilerplate(root *html.Node) {
	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				switch c.DataAtom {
				case atom.Script, atom.Style, atom.Nav, atom.Footer:
					doomed = append(doomed, c)
					continue
				}
			}
			walk(c)
		}
	}
	walk(root)
	for _, n := range doomed {
		n.Parent.RemoveChild(n)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
