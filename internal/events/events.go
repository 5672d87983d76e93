package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"audiogen/internal/api"
)

// Wire names of inbound events.
const (
	NameAddToQueue     = "add_to_queue"
	NameFinishAudio    = "on_finish_audio"
	NameProgress       = "progress"
	NameStatus         = "status"
	NameError          = "error"
	NameAudioJSONPairs = "audio_json_pairs"
)

// Event is implemented by every inbound variant.
type Event interface {
	Name() string
	isEvent()
}

// AddToQueue announces a newly accepted job.
type AddToQueue struct {
	Prompt string
}

// FinishAudio announces the head job's result files.
type FinishAudio struct {
	Prompt       string
	Filename     string
	JSONFilename string
}

// Progress reports the head job's completion fraction, unclamped.
type Progress struct {
	Fraction float64
}

// StatusState is the lifecycle value carried by a status event.
type StatusState string

const (
	StateStarted  StatusState = "started"
	StateFinished StatusState = "finished"
	StateError    StatusState = "error"
)

// Status reports a job lifecycle transition.
type Status struct {
	Prompt string
	State  StatusState
}

// Error carries a server-side failure message.
type Error struct {
	Prompt  string
	Message string
}

// Pair references one generated audio file and its metadata document.
type Pair struct {
	Filename     string
	JSONFilename string
}

// AudioJSONPairs lists every completed generation known to the server.
type AudioJSONPairs struct {
	Pairs []Pair
}

func (AddToQueue) Name() string     { return NameAddToQueue }
func (FinishAudio) Name() string    { return NameFinishAudio }
func (Progress) Name() string       { return NameProgress }
func (Status) Name() string         { return NameStatus }
func (Error) Name() string          { return NameError }
func (AudioJSONPairs) Name() string { return NameAudioJSONPairs }

func (AddToQueue) isEvent()     {}
func (FinishAudio) isEvent()    {}
func (Progress) isEvent()       {}
func (Status) isEvent()         {}
func (Error) isEvent()          {}
func (AudioJSONPairs) isEvent() {}

// Decode maps a wire event to its variant.
func Decode(name string, payload json.RawMessage) (Event, error) {
	switch name {
	case NameAddToQueue:
		var body struct {
			Prompt *string `json:"prompt"`
		}
		if err := decodeObject(name, payload, &body); err != nil {
			return nil, err
		}
		if body.Prompt == nil {
			return nil, missing(name, "prompt")
		}
		return AddToQueue{Prompt: *body.Prompt}, nil
	case NameFinishAudio:
		var body struct {
			Prompt       string  `json:"prompt"`
			Filename     *string `json:"filename"`
			JSONFilename *string `json:"json_filename"`
		}
		if err := decodeObject(name, payload, &body); err != nil {
			return nil, err
		}
		if body.Filename == nil || *body.Filename == "" {
			return nil, missing(name, "filename")
		}
		if body.JSONFilename == nil || *body.JSONFilename == "" {
			return nil, missing(name, "json_filename")
		}
		return FinishAudio{Prompt: body.Prompt, Filename: *body.Filename, JSONFilename: *body.JSONFilename}, nil
	case NameProgress:
		var body struct {
			Progress *float64 `json:"progress"`
		}
		if err := decodeObject(name, payload, &body); err != nil {
			return nil, err
		}
		if body.Progress == nil {
			return nil, missing(name, "progress")
		}
		return Progress{Fraction: *body.Progress}, nil
	case NameStatus:
		var body struct {
			Prompt string  `json:"prompt"`
			State  *string `json:"state"`
		}
		if err := decodeObject(name, payload, &body); err != nil {
			return nil, err
		}
		if body.State == nil {
			return nil, missing(name, "state")
		}
		state := StatusState(*body.State)
		switch state {
		case StateStarted, StateFinished, StateError:
		default:
			return nil, api.Wrap(api.ErrProtocol, "events", name, fmt.Sprintf("unknown state %q", *body.State), nil)
		}
		return Status{Prompt: body.Prompt, State: state}, nil
	case NameError:
		var body struct {
			Prompt  string  `json:"prompt"`
			Message *string `json:"message"`
		}
		if err := decodeObject(name, payload, &body); err != nil {
			return nil, err
		}
		if body.Message == nil {
			return nil, missing(name, "message")
		}
		return Error{Prompt: body.Prompt, Message: *body.Message}, nil
	case NameAudioJSONPairs:
		return decodePairs(payload)
	default:
		return nil, api.Wrap(api.ErrProtocol, "events", "decode", fmt.Sprintf("unknown event %q", name), nil)
	}
}

func decodePairs(payload json.RawMessage) (Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, missing(NameAudioJSONPairs, "pairs")
	}
	var raw [][]string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, api.Wrap(api.ErrProtocol, "events", NameAudioJSONPairs, "malformed payload", err)
	}
	pairs := make([]Pair, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 2 || entry[0] == "" || entry[1] == "" {
			return nil, api.Wrap(api.ErrProtocol, "events", NameAudioJSONPairs, fmt.Sprintf("entry %d is not a [filename, json_filename] pair", i), nil)
		}
		pairs = append(pairs, Pair{Filename: entry[0], JSONFilename: entry[1]})
	}
	return AudioJSONPairs{Pairs: pairs}, nil
}

func decodeObject(name string, payload json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return api.Wrap(api.ErrProtocol, "events", name, "empty payload", nil)
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return api.Wrap(api.ErrProtocol, "events", name, "malformed payload", err)
	}
	return nil
}

func missing(name, field string) error {
	return api.Wrap(api.ErrProtocol, "events", name, fmt.Sprintf("missing field %q", field), nil)
}
