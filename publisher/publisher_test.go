package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/draft"
	"github.com/5741327-hash/tesseractx-bot/telegram"
)

type sent struct {
	kind    string
	chatID  string
	payload string
	text    string
	mode    telegram.ParseMode
	at      time.Time
}

type fakeChannel struct {
	mu       sync.Mutex
	sends    []sent
	photoErr error
	textErr  error
}

func (f *fakeChannel) SendPhoto(_ context.Context, chatID, photoURL, caption string, mode telegram.ParseMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sent{kind: "photo", chatID: chatID, payload: photoURL, text: caption, mode: mode, at: time.Now()})
	return f.photoErr
}

func (f *fakeChannel) SendMessage(_ context.Context, chatID, text string, mode telegram.ParseMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sent{kind: "message", chatID: chatID, text: text, mode: mode, at: time.Now()})
	return f.textErr
}

func newTestPublisher(t *testing.T, ch Channel, store *draft.Store, delay time.Duration) *Publisher {
	t.Helper()
	p, err := New(ch, store, "@eventhorizon", delay, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPublish_NoDraft(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(t, ch, draft.NewStore(), time.Millisecond)

	if err := p.Publish(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
	if len(ch.sends) != 0 {
		t.Errorf("no sends expected, got %d", len(ch.sends))
	}
}

func TestPublish_PhotoThenContinuation(t *testing.T) {
	ch := &fakeChannel{}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "<b>Caption</b>", PartTwo: "Rest of the story", ImageURL: "https://img/1.png"})
	p := newTestPublisher(t, ch, store, 20*time.Millisecond)

	if err := p.Publish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ch.sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(ch.sends))
	}
	photo, msg := ch.sends[0], ch.sends[1]
	if photo.kind != "photo" || msg.kind != "message" {
		t.Fatalf("wrong order: %s then %s", photo.kind, msg.kind)
	}
	if photo.chatID != "@eventhorizon" || photo.payload != "https://img/1.png" || photo.mode != telegram.ParseHTML {
		t.Errorf("unexpected photo send %+v", photo)
	}
	if photo.text != "<b>Caption</b>"+ContinuationMarker {
		t.Errorf("caption = %q", photo.text)
	}
	if msg.text != "Rest of the story" || msg.chatID != "@eventhorizon" {
		t.Errorf("unexpected continuation %+v", msg)
	}
	if gap := msg.at.Sub(photo.at); gap < 20*time.Millisecond {
		t.Errorf("continuation sent after %v, want >= 20ms", gap)
	}
	if _, ok := store.Peek(); ok {
		t.Error("draft should be cleared after a successful publish")
	}

	if err := p.Publish(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("second publish: expected ErrNoDraft, got %v", err)
	}
	if len(ch.sends) != 2 {
		t.Errorf("second publish must not send anything, got %d sends in total", len(ch.sends))
	}
}

func TestPublish_SingleMessageWhenPartTwoBlank(t *testing.T) {
	ch := &fakeChannel{}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "Only caption", PartTwo: "  \n", ImageURL: "https://img/2.png"})
	p := newTestPublisher(t, ch, store, time.Hour)

	if err := p.Publish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ch.sends) != 1 {
		t.Fatalf("expected a single send, got %d", len(ch.sends))
	}
	if strings.Contains(ch.sends[0].text, ContinuationMarker) {
		t.Error("caption should not carry the continuation marker")
	}
}

func TestPublish_DeliveryErrorKeepsDraft(t *testing.T) {
	ch := &fakeChannel{photoErr: errors.New("Bad Request: wrong file identifier")}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "x", PartTwo: "y", ImageURL: "https://img/3.png"})
	p := newTestPublisher(t, ch, store, time.Millisecond)

	err := p.Publish(context.Background())
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
	if de.Destination != "@eventhorizon" || de.Step != "photo" {
		t.Errorf("unexpected error %+v", de)
	}
	if !strings.Contains(err.Error(), "wrong file identifier") {
		t.Errorf("error should carry the cause: %v", err)
	}
	if len(ch.sends) != 1 {
		t.Errorf("continuation must not be sent after a failed photo, got %d sends", len(ch.sends))
	}
	if _, ok := store.Peek(); !ok {
		t.Error("draft should stay staged for a retry")
	}
}

func TestPublish_ContinuationFailureKeepsDraft(t *testing.T) {
	ch := &fakeChannel{textErr: errors.New("Too Many Requests")}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "x", PartTwo: "y", ImageURL: "https://img/4.png"})
	p := newTestPublisher(t, ch, store, time.Millisecond)

	var de *DeliveryError
	if err := p.Publish(context.Background()); !errors.As(err, &de) || de.Step != "continuation" {
		t.Fatalf("expected continuation DeliveryError, got %v", err)
	}
	if !de.PhotoLive {
		t.Error("error should report the photo as live")
	}
	d, ok := store.Peek()
	if !ok {
		t.Fatal("draft should stay staged")
	}
	if !d.PhotoDelivered {
		t.Error("staged draft should remember the delivered photo")
	}
}

func TestPublish_RetryAfterContinuationFailureSkipsPhoto(t *testing.T) {
	ch := &fakeChannel{textErr: errors.New("Too Many Requests")}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "x", PartTwo: "y", ImageURL: "https://img/6.png"})
	p := newTestPublisher(t, ch, store, time.Millisecond)

	if err := p.Publish(context.Background()); err == nil {
		t.Fatal("expected the first attempt to fail")
	}
	ch.textErr = nil
	if err := p.Publish(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	var photos, messages int
	for _, s := range ch.sends {
		switch s.kind {
		case "photo":
			photos++
		case "message":
			messages++
		}
	}
	if photos != 1 || messages != 2 {
		t.Errorf("photos = %d, messages = %d, want 1 and 2", photos, messages)
	}
	if _, ok := store.Peek(); ok {
		t.Error("draft should be cleared after the retry succeeds")
	}
}

func TestPublish_PhotoFailureIsNotLive(t *testing.T) {
	ch := &fakeChannel{photoErr: errors.New("Forbidden")}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "x", PartTwo: "y", ImageURL: "https://img/7.png"})
	p := newTestPublisher(t, ch, store, time.Millisecond)

	var de *DeliveryError
	if err := p.Publish(context.Background()); !errors.As(err, &de) || de.PhotoLive {
		t.Fatalf("expected a photo DeliveryError without PhotoLive, got %v", err)
	}
	if d, _ := store.Peek(); d.PhotoDelivered {
		t.Error("photo must not be marked delivered after it failed")
	}
}

func TestPublish_CancelledDuringDelay(t *testing.T) {
	ch := &fakeChannel{}
	store := draft.NewStore()
	store.Stage(draft.Draft{PartOne: "x", PartTwo: "y", ImageURL: "https://img/5.png"})
	p := newTestPublisher(t, ch, store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Publish(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := store.Peek(); !ok {
		t.Error("draft should stay staged")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, draft.NewStore(), "@c", 0, zerolog.Nop()); err == nil {
		t.Error("expected error for nil channel")
	}
	if _, err := New(&fakeChannel{}, draft.NewStore(), "", 0, zerolog.Nop()); err == nil {
		t.Error("expected error for empty destination")
	}
	p, err := New(&fakeChannel{}, draft.NewStore(), "@c", 0, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if p.delay != DefaultDelay {
		t.Errorf("delay = %v, want default", p.delay)
	}
}
