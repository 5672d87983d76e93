package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/testsupport"
	"audiogen/internal/transport"
)

const waitTimeout = 2 * time.Second

func nextMessage(t *testing.T, client *transport.Client) transport.Message {
	t.Helper()
	select {
	case msg, ok := <-client.Messages():
		if !ok {
			t.Fatalf("message channel closed: %v", client.Err())
		}
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message")
		return transport.Message{}
	}
}

func TestDialDeliversConnectEventsAndPushes(t *testing.T) {
	server := testsupport.NewSocketServer(t)
	server.EmitOnConnect("audio_json_pairs", [][]string{{"static/audio/a.wav", "static/audio/a.json"}})

	ctx := context.Background()
	client, err := transport.Dial(ctx, server.URL(), transport.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	server.WaitConnected(waitTimeout)

	if client.SID() == "" {
		t.Fatal("expected session id from open packet")
	}

	msg := nextMessage(t, client)
	if msg.Event != "audio_json_pairs" {
		t.Fatalf("first event = %q, want audio_json_pairs", msg.Event)
	}

	server.Emit("progress", map[string]float64{"progress": 0.5})
	msg = nextMessage(t, client)
	if msg.Event != "progress" || string(msg.Data) != `{"progress":0.5}` {
		t.Fatalf("unexpected message %q %s", msg.Event, msg.Data)
	}
}

func TestClientAnswersPing(t *testing.T) {
	server := testsupport.NewSocketServer(t)
	client, err := transport.Dial(context.Background(), server.URL(), transport.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	server.WaitConnected(waitTimeout)

	server.Broadcast("2")
	deadline := time.Now().Add(waitTimeout)
	for server.Pongs() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never answered ping")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEmitReachesServer(t *testing.T) {
	server := testsupport.NewSocketServer(t)
	client, err := transport.Dial(context.Background(), server.URL(), transport.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	server.WaitConnected(waitTimeout)

	payload := map[string]any{"prompt": "rain on tin roof", "model": "small"}
	if err := client.Emit(context.Background(), "submit_sliders", payload); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	ev := server.NextEvent(waitTimeout)
	if ev.Event != "submit_sliders" {
		t.Fatalf("event = %q", ev.Event)
	}
	var got map[string]any
	if err := json.Unmarshal(ev.Data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got["prompt"] != "rain on tin roof" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestServerCloseEndsMessages(t *testing.T) {
	server := testsupport.NewSocketServer(t)
	client, err := transport.Dial(context.Background(), server.URL(), transport.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	server.WaitConnected(waitTimeout)

	server.Broadcast("1")
	select {
	case <-client.Done():
	case <-time.After(waitTimeout):
		t.Fatal("read loop did not exit after server close")
	}
	if err := client.Err(); !errors.Is(err, api.ErrTransport) {
		t.Fatalf("Err() = %v, want transport error", err)
	}
}

func TestCloseIsClean(t *testing.T) {
	server := testsupport.NewSocketServer(t)
	client, err := transport.Dial(context.Background(), server.URL(), transport.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server.WaitConnected(waitTimeout)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Err(); err != nil {
		t.Fatalf("Err() after Close = %v, want nil", err)
	}
	if _, ok := <-client.Messages(); ok {
		t.Fatal("expected closed message channel")
	}
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := transport.Dial(context.Background(), "ftp://example.com", transport.Options{})
	if !errors.Is(err, api.ErrConfiguration) {
		t.Fatalf("Dial error = %v, want configuration error", err)
	}
}
