// Package bot dispatches operator messages to the pipeline and the publisher.
package bot

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/pipeline"
	"github.com/5741327-hash/tesseractx-bot/publisher"
	"github.com/5741327-hash/tesseractx-bot/telegram"
)

var ErrAccessDenied = errors.New("access denied")

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// Messenger is the reply side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string, mode telegram.ParseMode) error
	SendPhoto(ctx context.Context, chatID, photoURL, caption string, mode telegram.ParseMode) error
}

type Runner interface {
	Run(ctx context.Context, src pipeline.Source, report pipeline.Reporter) (pipeline.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context) error
}

type Options struct {
	OperatorID      int64
	ChannelName     string
	MinManualLength int
	// ShortTextReply sends an explanation for pasted text that is too short
	// instead of ignoring it.
	ShortTextReply bool
}

// HandlerFunc handles one inbound message.
type HandlerFunc func(ctx context.Context, m *telegram.Message) error

// Bot routes updates. Every handler except /start runs behind operatorOnly.
type Bot struct {
	msgr      Messenger
	runner    Runner
	publisher Publisher
	store     *draft.Store
	opts      Options
	logger    zerolog.Logger

	commands map[string]HandlerFunc
	fallback HandlerFunc
}

func New(msgr Messenger, runner Runner, pub Publisher, store *draft.Store, opts Options, logger zerolog.Logger) (*Bot, error) {
	if msgr == nil || runner == nil || pub == nil || store == nil {
		return nil, errors.New("bot needs a messenger, runner, publisher and draft store")
	}
	if opts.OperatorID == 0 {
		return nil, errors.New("operator id is required")
	}
	if opts.MinManualLength <= 0 {
		opts.MinManualLength = pipeline.DefaultMinManualLength
	}
	b := &Bot{
		msgr:      msgr,
		runner:    runner,
		publisher: pub,
		store:     store,
		opts:      opts,
		logger:    logger.With().Str("component", "bot").Logger(),
	}
	b.commands = map[string]HandlerFunc{
		"start":   b.handleStart,
		"wake":    b.operatorOnly(b.handleWake),
		"publish": b.operatorOnly(b.handlePublish),
		"draft":   b.operatorOnly(b.handleDraft),
	}
	b.fallback = b.operatorOnly(b.handleSubmission)
	return b, nil
}

// HandleUpdate processes one update to completion. Callers serialize calls.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	m := u.Message
	if m == nil || strings.TrimSpace(m.Text) == "" {
		return
	}
	h := b.fallback
	if cmd := m.Command(); cmd != "" {
		var ok bool
		if h, ok = b.commands[cmd]; !ok {
			h = b.operatorOnly(b.handleUnknown)
		}
	}
	if err := h(ctx, m); err != nil {
		b.logger.Warn().Err(err).Int64("update_id", u.UpdateID).Int64("sender", m.SenderID()).Msg("update not handled")
	}
}

// operatorOnly rejects senders other than the configured operator with a fixed reply
// before next runs.
func (b *Bot) operatorOnly(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, m *telegram.Message) error {
		if m.SenderID() != b.opts.OperatorID {
			b.logger.Warn().Int64("sender", m.SenderID()).Msg("access attempt from non-operator")
			b.reply(ctx, m, refusalText, telegram.ParsePlain)
			return ErrAccessDenied
		}
		return next(ctx, m)
	}
}

func (b *Bot) handleStart(ctx context.Context, m *telegram.Message) error {
	return b.reply(ctx, m, helpText(b.opts.ChannelName, b.opts.MinManualLength), telegram.ParsePlain)
}

func (b *Bot) handleWake(ctx context.Context, m *telegram.Message) error {
	return b.reply(ctx, m, wakeText(b.opts.MinManualLength), telegram.ParsePlain)
}

func (b *Bot) handleUnknown(ctx context.Context, m *telegram.Message) error {
	return b.reply(ctx, m, unknownCmdText, telegram.ParsePlain)
}

func (b *Bot) handlePublish(ctx context.Context, m *telegram.Message) error {
	err := b.publisher.Publish(ctx)
	switch {
	case err == nil:
		return b.reply(ctx, m, publishedText(b.opts.ChannelName), telegram.ParsePlain)
	case errors.Is(err, publisher.ErrNoDraft):
		return b.reply(ctx, m, noDraftText, telegram.ParsePlain)
	default:
		b.reply(ctx, m, publishFailedText(err), telegram.ParsePlain)
		return err
	}
}

func (b *Bot) handleDraft(ctx context.Context, m *telegram.Message) error {
	d, ok := b.store.Peek()
	if !ok {
		return b.reply(ctx, m, noDraftShow, telegram.ParsePlain)
	}
	return b.preview(ctx, m, d)
}

// classify decides what an operator message submits. Text long enough for manual mode
// is taken as-is; otherwise the first link in it is used; otherwise it is short text.
func (b *Bot) classify(text string) pipeline.Source {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= b.opts.MinManualLength {
		return pipeline.TextSource(text)
	}
	if u := urlRe.FindString(text); u != "" {
		return pipeline.URLSource(u)
	}
	return pipeline.TextSource(text)
}

func (b *Bot) handleSubmission(ctx context.Context, m *telegram.Message) error {
	src := b.classify(m.Text)
	if src.Kind == pipeline.SourceURL {
		b.reply(ctx, m, startURLText(src.Value), telegram.ParsePlain)
	}

	res, err := b.runner.Run(ctx, src, func(ctx context.Context, ev pipeline.Event) {
		if text := progressText(src, ev); text != "" {
			b.reply(ctx, m, text, telegram.ParsePlain)
		}
	})
	if errors.Is(err, pipeline.ErrInputTooShort) {
		if b.opts.ShortTextReply {
			b.reply(ctx, m, tooShortText(err), telegram.ParsePlain)
		}
		return err
	}
	if err != nil {
		b.reply(ctx, m, abortText(err), telegram.ParsePlain)
		return err
	}

	if res.Replaced {
		b.reply(ctx, m, replacedText, telegram.ParsePlain)
	}
	return b.preview(ctx, m, res.Draft)
}

// preview shows a draft to the operator: the photo with part one, then part two. If the
// photo cannot be sent the caption text is sent alone with the error.
func (b *Bot) preview(ctx context.Context, m *telegram.Message, d draft.Draft) error {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	if err := b.msgr.SendPhoto(ctx, chatID, d.ImageURL, previewCaption(d), telegram.ParseHTML); err != nil {
		b.logger.Warn().Err(err).Str("image", d.ImageURL).Msg("draft preview photo failed")
		if err := b.reply(ctx, m, previewFallback(d, err), telegram.ParseHTML); err != nil {
			return err
		}
	}
	if d.HasContinuation() {
		return b.reply(ctx, m, previewContinuation(d), telegram.ParseHTML)
	}
	return nil
}

func (b *Bot) reply(ctx context.Context, m *telegram.Message, text string, mode telegram.ParseMode) error {
	err := b.msgr.SendMessage(ctx, strconv.FormatInt(m.Chat.ID, 10), text, mode)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat", m.Chat.ID).Msg("reply failed")
	}
	return err
}
