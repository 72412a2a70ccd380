// Package draft holds the single post awaiting operator approval.
package draft

import (
	"strings"
	"sync"
	"time"
)

// ImageOrigin records where a draft's image came from.
type ImageOrigin string

const (
	ImageLead        ImageOrigin = "lead"
	ImageSynthesized ImageOrigin = "synthesized"
	ImagePlaceholder ImageOrigin = "placeholder"
)

// Draft is a rendered post ready for publishing. Source, ImageOrigin and CreatedAt are
// informational and never change what gets published.
type Draft struct {
	PartOne  string
	PartTwo  string
	ImageURL string

	Source      string
	ImageOrigin ImageOrigin
	CreatedAt   time.Time

	// PhotoDelivered is set once the photo with part one is live in the channel, so a
	// retry after a failed continuation sends only part two.
	PhotoDelivered bool
}

// HasContinuation reports whether the draft needs a second message.
func (d Draft) HasContinuation() bool {
	return strings.TrimSpace(d.PartTwo) != ""
}

// Store is a single-slot draft holder. Staging a new draft replaces the old one.
type Store struct {
	mu    sync.Mutex
	slot  Draft
	ready bool
}

func NewStore() *Store {
	return &Store{}
}

// Stage puts d in the slot and reports whether an earlier draft was replaced.
func (s *Store) Stage(d Draft) (replaced bool) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced = s.ready
	s.slot = d
	s.ready = true
	return replaced
}

// Peek returns the staged draft without removing it.
func (s *Store) Peek() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot, s.ready
}

// MarkPhotoDelivered flags the staged draft's photo as sent. It is a no-op when the
// slot is empty.
func (s *Store) MarkPhotoDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		s.slot.PhotoDelivered = true
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = Draft{}
	s.ready = false
}
