package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"audiogen/internal/api"
	"audiogen/internal/config"
	"audiogen/internal/notifications"
	"audiogen/internal/reconcile"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

type ntfyRecorder struct {
	mu       sync.Mutex
	requests []captured
}

func (r *ntfyRecorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.requests...)
}

func newNtfyServer(t *testing.T, status int) (notifications.Service, *ntfyRecorder) {
	t.Helper()
	rec := &ntfyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL + "/audiogen"
	return notifications.NewService(&cfg), rec
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification: %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	svc, rec := newNtfyServer(t, http.StatusOK)
	ctx := context.Background()

	if err := svc.NotifyGenerationFinished(ctx, "rain on tin", "melody", "static/audio/a.wav"); err != nil {
		t.Fatalf("finished: %v", err)
	}
	if err := svc.NotifyGenerationFailed(ctx, "rain on tin", "error: CUDA out of memory"); err != nil {
		t.Fatalf("failed: %v", err)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test: %v", err)
	}

	got := rec.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].title != "Audiogen - Finished" || got[0].message != "🎵 Finished: rain on tin (Melody)\nAudio: static/audio/a.wav" {
		t.Fatalf("unexpected finished payload: %+v", got[0])
	}
	if got[0].tags != "audiogen,generation,completed" || got[0].priority != "" {
		t.Fatalf("unexpected finished headers: %+v", got[0])
	}
	if got[1].priority != "high" || got[1].message != "❌ Generation failed: rain on tin\nCUDA out of memory" {
		t.Fatalf("unexpected failure payload: %+v", got[1])
	}
	if got[2].title != "Audiogen - Test" || got[2].priority != "low" {
		t.Fatalf("unexpected test payload: %+v", got[2])
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	svc, _ := newNtfyServer(t, http.StatusForbidden)
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNotifierPublishesLiveOutcomesOnce(t *testing.T) {
	svc, rec := newNtfyServer(t, http.StatusOK)
	n := notifications.NewNotifier(context.Background(), svc, nil)

	n.ReplaceResults([]api.CompletedItem{{Prompt: "history"}})
	n.AddResult(api.CompletedItem{Prompt: "storm", Model: "large"}, reconcile.OrderRecentFirst)
	failed := reconcile.Status{Kind: reconcile.KindError, Text: "error: boom", Prompt: "waves"}
	n.SetStatus(failed)
	n.SetStatus(failed)
	n.SetStatus(reconcile.Status{Kind: reconcile.KindError, Text: "error: malformed progress event"})
	n.Wait()

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %+v", len(got), got)
	}
	titles := got[0].title + "|" + got[1].title
	if !strings.Contains(titles, "Audiogen - Finished") || !strings.Contains(titles, "Audiogen - Error") {
		t.Fatalf("unexpected notifications: %+v", got)
	}
}
