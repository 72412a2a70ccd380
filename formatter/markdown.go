package formatter

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// mdParser only knows ATX headings, paragraphs and emphasis. Everything else the model
// writes (lists, rules, link references, code, backslashes) stays plain paragraph text.
var mdParser = parser.NewParser(
	parser.WithBlockParsers(
		util.Prioritized(parser.NewATXHeadingParser(), 600),
		util.Prioritized(parser.NewParagraphParser(), 1000),
	),
	parser.WithInlineParsers(
		util.Prioritized(parser.NewEmphasisParser(), 500),
	),
)

// FromMarkdown converts the Markdown-only markup the model sometimes emits despite
// instructions into the tag subset Telegram accepts: **x** and __x__ become <b>x</b> and
// "# Title" lines become bold lines. Single * and _ pairs are left as written, since
// they show up in arithmetic and identifiers far more often than as emphasis. All other
// text is copied through unchanged for Sanitize.
func FromMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	source := []byte(src)
	doc := mdParser.Parse(text.NewReader(source))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		var s string
		switch n.(type) {
		case *ast.Heading:
			s = "<b>" + renderInlines(n, source) + "</b>"
		default:
			s = renderInlines(n, source)
		}
		if s = strings.TrimRight(s, " \n"); s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderInlines(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(&sb, c, source)
	}
	return sb.String()
}

func writeInline(sb *strings.Builder, n ast.Node, source []byte) {
	switch v := n.(type) {
	case *ast.Text:
		sb.Write(v.Segment.Value(source))
		// the parser drops the backslash of a "\" line break from the segment
		if v.HardLineBreak() && v.Segment.Stop < len(source) && source[v.Segment.Stop] == '\\' {
			sb.WriteByte('\\')
		}
		if v.SoftLineBreak() || v.HardLineBreak() {
			sb.WriteByte('\n')
		}
	case *ast.Emphasis:
		if v.Level >= 2 {
			sb.WriteString("<b>" + renderInlines(n, source) + "</b>")
			return
		}
		delim := string(openingDelimiter(v, source))
		sb.WriteString(delim + renderInlines(n, source) + delim)
	default:
		sb.WriteString(renderInlines(n, source))
	}
}

// openingDelimiter recovers the * or _ that opened e. Delimiters of nested emphasis
// sit directly before the first text leaf, outermost first.
func openingDelimiter(e *ast.Emphasis, source []byte) byte {
	depth := 0
	var n ast.Node = e
	for {
		em, ok := n.(*ast.Emphasis)
		if !ok {
			break
		}
		depth += em.Level
		n = em.FirstChild()
	}
	if t, ok := n.(*ast.Text); ok {
		if i := t.Segment.Start - depth; i >= 0 && (source[i] == '*' || source[i] == '_') {
			return source[i]
		}
	}
	return '*'
}
