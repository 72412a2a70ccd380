// Package publisher sends the staged draft to the broadcast channel.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/metrics"
	"github.com/5741327-hash/tesseractx-bot/telegram"
)

const (
	DefaultDelay = 1500 * time.Millisecond

	// ContinuationMarker is appended to the caption when a second message follows.
	ContinuationMarker = "\n\n<i>⬇️ continued below</i>"
)

var ErrNoDraft = errors.New("no draft staged")

// DeliveryError wraps a failed send to the channel. The draft stays staged.
// PhotoLive is true when the photo with part one already reached the channel.
type DeliveryError struct {
	Destination string
	Step        string
	PhotoLive   bool
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed at %s: %v", e.Destination, e.Step, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Channel is the outbound half of the chat transport.
type Channel interface {
	SendPhoto(ctx context.Context, chatID, photoURL, caption string, mode telegram.ParseMode) error
	SendMessage(ctx context.Context, chatID, text string, mode telegram.ParseMode) error
}

// Publisher orchestrates the photo and continuation sends for one draft.
type Publisher struct {
	channel     Channel
	store       *draft.Store
	destination string
	delay       time.Duration
	logger      zerolog.Logger
}

// New creates a Publisher. A non-positive delay selects DefaultDelay.
func New(channel Channel, store *draft.Store, destination string, delay time.Duration, logger zerolog.Logger) (*Publisher, error) {
	if channel == nil || store == nil {
		return nil, errors.New("publisher needs a channel and a draft store")
	}
	if destination == "" {
		return nil, errors.New("publisher destination is required")
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Publisher{
		channel:     channel,
		store:       store,
		destination: destination,
		delay:       delay,
		logger:      logger.With().Str("component", "publisher").Logger(),
	}, nil
}

func (p *Publisher) Destination() string { return p.destination }

// Publish sends the staged draft: a photo with part one as caption, then part two as a
// separate message after the ordering delay. The slot is cleared only when every send
// succeeds. If an earlier attempt already delivered the photo, only part two is sent.
func (p *Publisher) Publish(ctx context.Context) error {
	d, ok := p.store.Peek()
	if !ok {
		metrics.PublishesTotal.WithLabelValues("no_draft").Inc()
		return ErrNoDraft
	}

	if d.PhotoDelivered {
		p.logger.Info().Str("destination", p.destination).Msg("[publish] photo already live, resending continuation only")
	} else {
		caption := d.PartOne
		if d.HasContinuation() {
			caption += ContinuationMarker
		}
		if err := p.channel.SendPhoto(ctx, p.destination, d.ImageURL, caption, telegram.ParseHTML); err != nil {
			return p.fail("photo", false, err)
		}
		p.store.MarkPhotoDelivered()
		p.logger.Info().Str("destination", p.destination).Str("image", d.ImageURL).Msg("[publish] photo sent")

		if d.HasContinuation() {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return p.fail("continuation", true, ctx.Err())
			}
		}
	}

	if d.HasContinuation() {
		if err := p.channel.SendMessage(ctx, p.destination, d.PartTwo, telegram.ParseHTML); err != nil {
			return p.fail("continuation", true, err)
		}
		p.logger.Info().Str("destination", p.destination).Msg("[publish] continuation sent")
	}

	p.store.Clear()
	metrics.PublishesTotal.WithLabelValues("published").Inc()
	return nil
}

func (p *Publisher) fail(step string, photoLive bool, err error) error {
	metrics.PublishesTotal.WithLabelValues("delivery_error").Inc()
	p.logger.Error().Err(err).Str("step", step).Bool("photo_live", photoLive).Msg("[publish] delivery failed, draft kept")
	return &DeliveryError{Destination: p.destination, Step: step, PhotoLive: photoLive, Err: err}
}
