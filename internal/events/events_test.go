package events_test

import (
	"encoding/json"
	"errors"
	"testing"

	"audiogen/internal/api"
	"audiogen/internal/events"
)

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    events.Event
	}{
		{"queue", events.NameAddToQueue, `{"prompt":"lofi beat"}`, events.AddToQueue{Prompt: "lofi beat"}},
		{"finish", events.NameFinishAudio, `{"prompt":"p","filename":"static/audio/p.wav","json_filename":"static/audio/p.json"}`,
			events.FinishAudio{Prompt: "p", Filename: "static/audio/p.wav", JSONFilename: "static/audio/p.json"}},
		{"progress", events.NameProgress, `{"progress":0.25}`, events.Progress{Fraction: 0.25}},
		{"progress above one", events.NameProgress, `{"progress":1.5}`, events.Progress{Fraction: 1.5}},
		{"status", events.NameStatus, `{"prompt":"p","state":"finished"}`, events.Status{Prompt: "p", State: events.StateFinished}},
		{"error", events.NameError, `{"prompt":"p","message":"CUDA out of memory"}`, events.Error{Prompt: "p", Message: "CUDA out of memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := events.Decode(tt.event, json.RawMessage(tt.payload))
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decode = %#v, want %#v", got, tt.want)
			}
			if got.Name() != tt.event {
				t.Fatalf("Name() = %q, want %q", got.Name(), tt.event)
			}
		})
	}
}

func TestDecodeAudioJSONPairs(t *testing.T) {
	payload := `[["static/audio/a.wav","static/audio/a.json"],["static/audio/b.wav","static/audio/b.json"]]`
	got, err := events.Decode(events.NameAudioJSONPairs, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	pairs, ok := got.(events.AudioJSONPairs)
	if !ok {
		t.Fatalf("expected AudioJSONPairs, got %T", got)
	}
	if len(pairs.Pairs) != 2 || pairs.Pairs[1].JSONFilename != "static/audio/b.json" {
		t.Fatalf("unexpected pairs: %+v", pairs.Pairs)
	}

	empty, err := events.Decode(events.NameAudioJSONPairs, json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("Decode empty list returned error: %v", err)
	}
	if n := len(empty.(events.AudioJSONPairs).Pairs); n != 0 {
		t.Fatalf("expected no pairs, got %d", n)
	}
}

func TestDecodeMalformedIsProtocolError(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
	}{
		{"missing prompt", events.NameAddToQueue, `{}`},
		{"missing progress", events.NameProgress, `{"value":1}`},
		{"progress wrong type", events.NameProgress, `{"progress":"half"}`},
		{"missing json filename", events.NameFinishAudio, `{"filename":"a.wav"}`},
		{"unknown state", events.NameStatus, `{"state":"paused"}`},
		{"missing message", events.NameError, `{"prompt":"p"}`},
		{"null payload", events.NameStatus, `null`},
		{"bad pair", events.NameAudioJSONPairs, `[["only-one"]]`},
		{"null pairs", events.NameAudioJSONPairs, `null`},
		{"unknown event", "reload", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := events.Decode(tt.event, json.RawMessage(tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, api.ErrProtocol) {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}
