package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/telegram"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []telegram.Update
	seen    chan struct{}
}

func (r *recordingHandler) HandleUpdate(_ context.Context, u telegram.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func newTestServer(t *testing.T, queueSize int) (*Server, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{seen: make(chan struct{}, 16)}
	s, err := New(h, "s3cret", queueSize, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s, h
}

func postUpdate(router http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const sampleUpdate = `{"update_id":10,"message":{"message_id":5,"from":{"id":1001,"is_bot":false,"first_name":"Op"},"chat":{"id":1001,"type":"private"},"date":1700000000,"text":"/wake"}}`

func TestWebhook_QueuesAndWorkerHandles(t *testing.T) {
	s, h := newTestServer(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Work(ctx)

	rec := postUpdate(s.Routes(), sampleUpdate, "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	select {
	case <-h.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not handle the update")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.updates[0]
	if u.UpdateID != 10 || u.Message == nil || u.Message.Text != "/wake" || u.Message.SenderID() != 1001 {
		t.Errorf("unexpected update %+v", u)
	}
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	s, _ := newTestServer(t, 4)
	router := s.Routes()

	for _, secret := range []string{"", "wrong"} {
		rec := postUpdate(router, sampleUpdate, secret)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: status = %d, want 401", secret, rec.Code)
		}
	}
	if len(s.queue) != 0 {
		t.Error("rejected updates must not be queued")
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	s, _ := newTestServer(t, 4)
	rec := postUpdate(s.Routes(), `{"update_id":`, "s3cret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_FullQueue(t *testing.T) {
	s, _ := newTestServer(t, 1)
	router := s.Routes()

	if rec := postUpdate(router, sampleUpdate, "s3cret"); rec.Code != http.StatusOK {
		t.Fatalf("first update status = %d", rec.Code)
	}
	if rec := postUpdate(router, sampleUpdate, "s3cret"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("second update status = %d, want 503", rec.Code)
	}
}

func TestWorker_SerialOrder(t *testing.T) {
	s, h := newTestServer(t, 8)
	router := s.Routes()
	for i := 1; i <= 3; i++ {
		body := strings.Replace(sampleUpdate, `"update_id":10`, `"update_id":`+string(rune('0'+i)), 1)
		if rec := postUpdate(router, body, "s3cret"); rec.Code != http.StatusOK {
			t.Fatalf("update %d: status %d", i, rec.Code)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Work(ctx)
	for i := 0; i < 3; i++ {
		select {
		case <-h.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stalled")
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, u := range h.updates {
		if u.UpdateID != int64(i+1) {
			t.Errorf("position %d has update %d", i, u.UpdateID)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, 4)
	router := s.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}

	postUpdate(router, sampleUpdate, "s3cret")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	for _, want := range []string{"bot_updates_total", "http_requests_total"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestNew_RequiresHandler(t *testing.T) {
	if _, err := New(nil, "", 0, zerolog.Nop()); err == nil {
		t.Error("expected error for nil handler")
	}
}
