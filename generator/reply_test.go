package generator

import (
	"errors"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Content
		wantErr bool
	}{
		{
			name:  "well formed",
			reply: "[PART 1]\nHello <b>world</b>\n\n[PART 2]\nMore text\n\n[IMAGE PROMPT]\nA nebula",
			want:  Content{PartOne: "Hello <b>world</b>", PartTwo: "More text", ImagePrompt: "A nebula"},
		},
		{
			name:  "case and whitespace tolerant",
			reply: "Sure!\n[ part1 ] one\n[Part  2]two\n[image   PROMPT]   three  ",
			want:  Content{PartOne: "one", PartTwo: "two", ImagePrompt: "three"},
		},
		{
			name:  "empty part two allowed",
			reply: "[PART 1]\ncaption\n[PART 2]\n\n[IMAGE PROMPT]\nstars",
			want:  Content{PartOne: "caption", PartTwo: "", ImagePrompt: "stars"},
		},
		{
			name:  "empty prompt falls back",
			reply: "[PART 1]\ncaption\n[PART 2]\nrest\n[IMAGE PROMPT]\n",
			want:  Content{PartOne: "caption", PartTwo: "rest", ImagePrompt: FallbackImagePrompt},
		},
		{
			name:  "first occurrence wins",
			reply: "[PART 1] a [PART 2] b [IMAGE PROMPT] c [PART 2] d",
			want:  Content{PartOne: "a", PartTwo: "b", ImagePrompt: "c [PART 2] d"},
		},
		{
			name:  "multiline part with cyrillic",
			reply: "[PART 1]\nПервый абзац.\n\nВторой абзац.\n[PART 2]\nПродолжение\n[IMAGE PROMPT]\nA telescope",
			want:  Content{PartOne: "Первый абзац.\n\nВторой абзац.", PartTwo: "Продолжение", ImagePrompt: "A telescope"},
		},
		{name: "missing middle marker", reply: "[PART 1] a [IMAGE PROMPT] c", wantErr: true},
		{name: "missing first marker", reply: "a [PART 2] b [IMAGE PROMPT] c", wantErr: true},
		{name: "missing prompt marker", reply: "[PART 1] a [PART 2] b", wantErr: true},
		{name: "reordered markers", reply: "[PART 1] a [IMAGE PROMPT] c [PART 2] b", wantErr: true},
		{name: "part two first", reply: "[PART 2] b [PART 1] a [IMAGE PROMPT] c", wantErr: true},
		{name: "empty part one", reply: "[PART 1]\n\n[PART 2] b [IMAGE PROMPT] c", wantErr: true},
		{name: "no markers at all", reply: "Here is your post about black holes.", wantErr: true},
		{name: "empty reply", reply: "", wantErr: true},
		{name: "wrong number", reply: "[PART 10] a [PART 2] b [IMAGE PROMPT] c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.reply)
			if tt.wantErr {
				if !errors.Is(err, ErrFormat) {
					t.Fatalf("expected ErrFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestEnforceBudget_UnderBudgetUntouched(t *testing.T) {
	c := Content{PartOne: strings.Repeat("a", 800), PartTwo: "tail", ImagePrompt: "p"}
	got := EnforceBudget(c, 800)
	if got != c {
		t.Errorf("content within budget should be unchanged")
	}
}

func TestEnforceBudget_NoCharactersLost(t *testing.T) {
	words := strings.Repeat("звезда galaxy nebula... ", 60)
	inputs := []Content{
		{PartOne: strings.Repeat("x", 900), PartTwo: "original tail"},
		{PartOne: words, PartTwo: ""},
		{PartOne: words, PartTwo: "Second part."},
		{PartOne: strings.Repeat("word ", 170) + "end…" + strings.Repeat(" more", 40)},
		{PartOne: strings.Repeat("é", 1700), PartTwo: "x"},
	}
	for i, c := range inputs {
		got := EnforceBudget(c, 800)
		if n := utf8.RuneCountInString(got.PartOne); n > 800 {
			t.Errorf("case %d: part one has %d characters, want <= 800", i, n)
		}
		if stripSpace(got.PartOne+got.PartTwo) != stripSpace(c.PartOne+c.PartTwo) {
			t.Errorf("case %d: text changed beyond whitespace", i)
		}
		if got.Moved == 0 {
			t.Errorf("case %d: expected Moved > 0", i)
		}
	}
}

func TestEnforceBudget_OverflowLeadsPartTwo(t *testing.T) {
	partOne := strings.Repeat("a", 795) + " bbbbbbbbbb cccc"
	got := EnforceBudget(Content{PartOne: partOne, PartTwo: "original"}, 800)

	if got.PartOne != strings.Repeat("a", 795) {
		t.Errorf("expected cut at the word boundary, part one ends with %q", got.PartOne[len(got.PartOne)-5:])
	}
	if got.PartTwo != "bbbbbbbbbb cccc\n\noriginal" {
		t.Errorf("part two = %q", got.PartTwo)
	}
}

func TestEnforceBudget_EllipsisMovesWithOverflow(t *testing.T) {
	partOne := strings.Repeat("a", 795) + "... rest of story words"
	got := EnforceBudget(Content{PartOne: partOne}, 800)

	if strings.HasSuffix(got.PartOne, ".") {
		t.Errorf("part one should not end with an ellipsis artifact: %q", got.PartOne[len(got.PartOne)-10:])
	}
	if !strings.HasPrefix(got.PartTwo, "...") {
		t.Errorf("part two should start with the relocated ellipsis, got %q", got.PartTwo)
	}
}

func TestEnforceBudget_SentencePeriodKept(t *testing.T) {
	partOne := strings.Repeat("a", 780) + " Done. " + strings.Repeat("x", 30)
	got := EnforceBudget(Content{PartOne: partOne}, 800)
	if !strings.HasSuffix(got.PartOne, "Done.") {
		t.Errorf("single period should stay, part one ends with %q", got.PartOne[len(got.PartOne)-8:])
	}
}

func TestEnforceBudget_NoWhitespaceHardCut(t *testing.T) {
	got := EnforceBudget(Content{PartOne: strings.Repeat("z", 900)}, 800)
	if len(got.PartOne) != 800 || len(got.PartTwo) != 100 {
		t.Errorf("hard cut lengths = %d/%d, want 800/100", len(got.PartOne), len(got.PartTwo))
	}
	if got.Moved != 100 {
		t.Errorf("moved = %d, want 100", got.Moved)
	}
}
