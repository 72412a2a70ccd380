package generator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// markerRe matches any of the three markers, case-insensitively and tolerating inner
// whitespace: "[PART 1]", "[ part1 ]", "[Image  Prompt]".
var markerRe = regexp.MustCompile(`(?i)\[\s*(part\s*1|part\s*2|image\s*prompt)\s*\]`)

type marker int

const (
	partOne marker = iota
	partTwo
	imagePrompt
	markerCount
)

var markerNames = [markerCount]string{MarkerPartOne, MarkerPartTwo, MarkerImagePrompt}

func markerOf(label string) marker {
	switch strings.ToLower(strings.Join(strings.Fields(label), "")) {
	case "part1":
		return partOne
	case "part2":
		return partTwo
	default:
		return imagePrompt
	}
}

// ParseReply reads the structured model reply. The grammar is
//
//	[PART 1] text [PART 2] text [IMAGE PROMPT] text
//
// where only the first occurrence of each marker counts and the three must appear in
// that order. Each capture runs up to the next marker; the prompt runs to the end.
// A missing or misplaced marker, or an empty part 1, is ErrFormat. An empty part 2 is
// allowed and an empty prompt is replaced with FallbackImagePrompt.
func ParseReply(reply string) (Content, error) {
	type span struct{ start, end int }
	var found [markerCount]*span

	for _, loc := range markerRe.FindAllStringSubmatchIndex(reply, -1) {
		m := markerOf(reply[loc[2]:loc[3]])
		if found[m] == nil {
			found[m] = &span{start: loc[0], end: loc[1]}
		}
	}

	for m, s := range found {
		if s == nil {
			return Content{}, fmt.Errorf("%w: missing %s marker", ErrFormat, markerNames[m])
		}
	}
	if !(found[partOne].end <= found[partTwo].start && found[partTwo].end <= found[imagePrompt].start) {
		return Content{}, fmt.Errorf("%w: markers out of order", ErrFormat)
	}

	c := Content{
		PartOne:     strings.TrimSpace(reply[found[partOne].end:found[partTwo].start]),
		PartTwo:     strings.TrimSpace(reply[found[partTwo].end:found[imagePrompt].start]),
		ImagePrompt: strings.TrimSpace(reply[found[imagePrompt].end:]),
	}
	if c.PartOne == "" {
		return Content{}, fmt.Errorf("%w: %s is empty", ErrFormat, MarkerPartOne)
	}
	if c.ImagePrompt == "" {
		c.ImagePrompt = FallbackImagePrompt
	}
	return c, nil
}

// EnforceBudget keeps PartOne within budget characters (runes). The cut backs off to the
// last whitespace within the final fifth of the window so words stay whole; an ellipsis
// left dangling at the cut travels with the overflow. The overflow is prepended to
// PartTwo, so the text of PartOne+PartTwo is unchanged apart from whitespace at the seam.
func EnforceBudget(c Content, budget int) Content {
	runes := []rune(c.PartOne)
	if budget <= 0 || len(runes) <= budget {
		return c
	}

	cut := budget
	for i := budget; i > budget-budget/5 && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	head := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
	trimmed := trimEllipsis(head)
	if strings.TrimSpace(trimmed) != "" {
		head = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	}
	overflow := strings.TrimSpace(string(runes[len([]rune(head)):]))

	c.PartOne = head
	if strings.TrimSpace(c.PartTwo) == "" {
		c.PartTwo = overflow
	} else {
		c.PartTwo = overflow + "\n\n" + c.PartTwo
	}
	c.Moved = len([]rune(overflow))
	return c
}

// trimEllipsis drops a trailing "…" or run of two or more dots. A single period is a
// sentence end and stays.
func trimEllipsis(s string) string {
	t := strings.TrimRight(s, ".…")
	removed := s[len(t):]
	if removed == "." {
		return s
	}
	return t
}
