package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SourceKind distinguishes a link to an article from pasted text.
type SourceKind int

const (
	SourceURL SourceKind = iota
	SourceText
)

func (k SourceKind) String() string {
	if k == SourceText {
		return "text"
	}
	return "url"
}

// Source is one operator submission.
type Source struct {
	Kind  SourceKind
	Value string
}

func URLSource(u string) Source     { return Source{Kind: SourceURL, Value: u} }
func TextSource(text string) Source { return Source{Kind: SourceText, Value: text} }

// DefaultMinManualLength is the shortest pasted text accepted, in characters.
const DefaultMinManualLength = 500

var ErrInputTooShort = errors.New("input too short")

// checkLength rejects pasted text below min characters. URLs are always accepted.
func (s Source) checkLength(min int) error {
	if s.Kind != SourceText {
		return nil
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(s.Value)); n < min {
		return fmt.Errorf("%w: %d of %d characters", ErrInputTooShort, n, min)
	}
	return nil
}

// Stage names a pipeline step for error reporting.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageRewrite Stage = "rewrite"
)

// StageError reports which step aborted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
