package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"

	"log/slog"
)

func newTestHandler(t *testing.T, sender *captureSender) http.Handler {
	t.Helper()
	pipeline, _ := newTestPipeline(t, sender, config.UnmatchedDrop)
	return Handler(pipeline, config.FeedHTTPConfig{
		Enabled:      true,
		Path:         "/feed",
		MaxBodyBytes: 1024,
	}, observability.NewForTesting(), slog.Default())
}

func TestHandlerAcceptsValidItem(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	handler := newTestHandler(t, sender)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/feed",
		strings.NewReader(`{"source":"tg","message_id":"1","text":"шахеди над Салтівка"}`))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", recorder.Code, recorder.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 delivery, got %v", sender.sent)
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, &captureSender{})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/feed", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestHandlerRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, &captureSender{})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/feed",
		strings.NewReader(`{"source":"tg"}`)))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", recorder.Code)
	}
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, &captureSender{})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/feed",
		strings.NewReader(`{"text":"`+strings.Repeat("а", 4096)+`"}`)))

	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", recorder.Code)
	}
}
