package textutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"plain", "lofi hip hop beat", "lofi hip hop beat"},
		{"punctuation", "rock/metal: loud?!", "rock metal loud"},
		{"accents", "Café  crème", "Cafe creme"},
		{"keeps underscore and hyphen", "slow_tempo - 60bpm", "slow_tempo - 60bpm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeFileName(tt.prompt, 0); got != tt.want {
				t.Errorf("SafeFileName(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestSafeFileNameTruncates(t *testing.T) {
	got := SafeFileName(strings.Repeat("ab ", 40), 10)
	if got != "ab ab ab a" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := SafeFileName("word word", 5); got != "word" {
		t.Fatalf("trailing space not trimmed: %q", got)
	}
}

func TestSafeFileNameFallsBackToHash(t *testing.T) {
	a := SafeFileName("雨の夜", 0)
	b := SafeFileName("静かな海", 0)
	if !strings.HasPrefix(a, "audio-") || len(a) != len("audio-")+8 {
		t.Fatalf("unexpected fallback %q", a)
	}
	if a == b {
		t.Fatalf("distinct prompts share a name: %q", a)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	exists := func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}
	first := UniquePath(dir, "rain", ".wav", exists)
	if first != filepath.Join(dir, "rain.wav") {
		t.Fatalf("unexpected first path %q", first)
	}
	for _, name := range []string{"rain.wav", "rain(1).wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := UniquePath(dir, "rain", ".wav", exists); got != filepath.Join(dir, "rain(2).wav") {
		t.Fatalf("unexpected deduped path %q", got)
	}
}
