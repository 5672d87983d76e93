package metadata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/metadata"
)

func newServer(t *testing.T, handler http.Handler) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := metadata.NewClient(srv.URL, 5*time.Second, metadata.WithConcurrency(2))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFetchDecodesDocumentAndLastModified(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/audio/a.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		w.Write([]byte(`{"prompt":"rain","model":"large","parameters":{"top_k":250,"top_p":0.67}}`))
	}))

	doc, err := client.Fetch(context.Background(), "static/audio/a.json")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Metadata.Prompt != "rain" || doc.Metadata.Model != "large" {
		t.Fatalf("unexpected metadata: %+v", doc.Metadata)
	}
	if got := doc.Metadata.Parameters.Names(); len(got) != 2 || got[0] != "top_k" {
		t.Fatalf("unexpected parameter order: %v", got)
	}
	if !doc.LastModified.Equal(modified) {
		t.Fatalf("unexpected last modified: %v", doc.LastModified)
	}
}

func TestFetchClassifiesFailures(t *testing.T) {
	client := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad.json":
			w.Write([]byte(`{not json`))
		default:
			http.NotFound(w, r)
		}
	}))

	for _, ref := range []string{"/missing.json", "/bad.json", ""} {
		_, err := client.Fetch(context.Background(), ref)
		if !errors.Is(err, api.ErrFetch) {
			t.Fatalf("ref %q: expected ErrFetch, got %v", ref, err)
		}
	}
}

func TestFetchAllKeepsOrderAndReportsPerEntry(t *testing.T) {
	var inflight, peak atomic.Int32
	client := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		if r.URL.Path == "/b.json" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Write([]byte(`{"prompt":"` + r.URL.Path + `","model":"small","parameters":{}}`))
	}))

	results := client.FetchAll(context.Background(), []string{"/a.json", "/b.json", "/c.json", "/d.json"})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, want := range []string{"/a.json", "/b.json", "/c.json", "/d.json"} {
		if results[i].Ref != want {
			t.Fatalf("result %d: ref %q want %q", i, results[i].Ref, want)
		}
	}
	if results[1].Err == nil {
		t.Fatal("expected error for /b.json")
	}
	if results[2].Err != nil || results[2].Document.Metadata.Prompt != "/c.json" {
		t.Fatalf("unexpected result: %+v", results[2])
	}
	if peak.Load() > 2 {
		t.Fatalf("concurrency limit exceeded: %d", peak.Load())
	}
}

func TestDownloadWritesFile(t *testing.T) {
	client := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("RIFFdata"))
	}))
	dest := filepath.Join(t.TempDir(), "out", "song.wav")
	n, err := client.Download(context.Background(), "/static/audio/song.wav", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "RIFFdata" {
		t.Fatalf("unexpected file content %q: %v", data, err)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := metadata.NewClient("localhost", time.Second); !errors.Is(err, api.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
