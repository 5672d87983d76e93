package lastrun_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/lastrun"
)

func TestLoadMissingReturnsNotOK(t *testing.T) {
	store := lastrun.NewStore(filepath.Join(t.TempDir(), "state", "last_run.json"))
	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected no record")
	}
}

func TestSaveThenLoadPreservesParameterOrder(t *testing.T) {
	store := lastrun.NewStore(filepath.Join(t.TempDir(), "last_run.json"))
	req := api.GenerationRequest{
		Prompt: "glass harmonica",
		Model:  "medium",
		Values: api.Params{
			{Name: "top_k", Value: 250},
			{Name: "top_p", Value: 0.67},
			{Name: "seed", Value: nil},
		},
	}
	saved := time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)
	if err := store.Save(context.Background(), lastrun.FromRequest(req, saved)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if rec.Prompt != "glass harmonica" || rec.Model != "medium" || !rec.SavedAt.Equal(saved) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	names := rec.Parameters.Names()
	if strings.Join(names, ",") != "top_k,top_p,seed" {
		t.Fatalf("unexpected order: %v", names)
	}
	if v, _ := rec.Parameters.Get("top_k"); v != 250 {
		t.Fatalf("expected integer top_k, got %#v", v)
	}

	if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_run.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := lastrun.NewStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
