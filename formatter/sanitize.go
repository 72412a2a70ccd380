// Package formatter prepares post text for Telegram's limited HTML parse mode.
package formatter

import (
	"regexp"
	"strings"
)

// allowedTagRe matches the emphasis tags that survive sanitizing. Attributes are not
// allowed, so "<b class=x>" is escaped like any other markup.
var allowedTagRe = regexp.MustCompile(`(?i)<(/?)(b|i|strong|em)>`)

var entityRe = regexp.MustCompile(`^&(?:amp|lt|gt|quot|#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6});`)

var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize escapes everything Telegram would try to parse as markup except balanced
// <b>, <i>, <strong> and <em> pairs. Bare ampersands are escaped first (existing entities
// are left alone), the whitelisted tags are set aside, the remaining angle brackets are
// escaped, and the tags are put back. Unbalanced tags are escaped as text. When tags
// cross, the pairs that still nest survive and the rest are escaped, so "<b><i>x</b></i>"
// keeps the <i> pair. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = escapeAmpersands(text)

	locs := allowedTagRe.FindAllStringSubmatchIndex(text, -1)
	keep := balancedTags(text, locs)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for i, loc := range locs {
		if !keep[i] {
			continue
		}
		b.WriteString(angleEscaper.Replace(text[last:loc[0]]))
		b.WriteString(strings.ToLower(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(angleEscaper.Replace(text[last:]))
	return b.String()
}

// balancedTags pairs opening and closing tags with a stack and reports which of them
// form properly nested pairs.
func balancedTags(text string, locs [][]int) []bool {
	keep := make([]bool, len(locs))
	type open struct {
		name string
		idx  int
	}
	var stack []open
	for i, loc := range locs {
		closing := loc[3] > loc[2]
		name := strings.ToLower(text[loc[4]:loc[5]])
		if !closing {
			stack = append(stack, open{name: name, idx: i})
			continue
		}
		if len(stack) > 0 && stack[len(stack)-1].name == name {
			keep[stack[len(stack)-1].idx] = true
			keep[i] = true
			stack = stack[:len(stack)-1]
		}
	}
	return keep
}

func escapeAmpersands(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !entityRe.MatchString(s[i:]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Render is the last step before a text part is staged: **bold** and heading markup is
// converted to the allowed tags and the result is sanitized. No other text changes
// beyond escaping.
func Render(text string) string {
	return Sanitize(FromMarkdown(text))
}
