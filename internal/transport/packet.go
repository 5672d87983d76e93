package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine.IO packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO packet types carried inside Engine.IO messages.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
	socketBinaryEvent  byte = '5'
	socketBinaryAck    byte = '6'
)

var errEmptyPacket = errors.New("empty packet")

type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

type socketPacket struct {
	kind      byte
	namespace string
	ackID     int
	data      json.RawMessage
}

func splitEngine(frame string) (byte, string, error) {
	if frame == "" {
		return 0, "", errEmptyPacket
	}
	kind := frame[0]
	if kind < engineOpen || kind > engineNoop {
		return 0, "", fmt.Errorf("unknown engine.io packet type %q", kind)
	}
	return kind, frame[1:], nil
}

func parseSocket(body string) (socketPacket, error) {
	if body == "" {
		return socketPacket{}, errEmptyPacket
	}
	pkt := socketPacket{kind: body[0], namespace: "/", ackID: -1}
	if pkt.kind < socketConnect || pkt.kind > socketBinaryAck {
		return socketPacket{}, fmt.Errorf("unknown socket.io packet type %q", pkt.kind)
	}
	rest := body[1:]
	if pkt.kind == socketBinaryEvent || pkt.kind == socketBinaryAck {
		return socketPacket{}, errors.New("binary socket.io packets are not supported")
	}
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			pkt.namespace = rest
			rest = ""
		} else {
			pkt.namespace = rest[:end]
			rest = rest[end+1:]
		}
	}
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id := 0
		for _, r := range rest[:digits] {
			id = id*10 + int(r-'0')
		}
		pkt.ackID = id
		rest = rest[digits:]
	}
	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return socketPacket{}, fmt.Errorf("socket.io packet carries invalid json")
		}
		pkt.data = json.RawMessage(rest)
	}
	return pkt, nil
}

// eventArgs splits an event packet's data array into its name and first
// argument. Missing arguments decode as JSON null.
func eventArgs(data json.RawMessage) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("decode event array: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event array is empty")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	if len(args) == 1 {
		return name, json.RawMessage("null"), nil
	}
	return name, args[1], nil
}

func namespacePrefix(namespace string) string {
	if namespace == "" || namespace == "/" {
		return ""
	}
	return namespace + ","
}

func encodeConnect(namespace string) string {
	return string([]byte{engineMessage, socketConnect}) + namespacePrefix(namespace)
}

func encodeDisconnect(namespace string) string {
	return string([]byte{engineMessage, socketDisconnect}) + namespacePrefix(namespace)
}

func encodeEvent(namespace, name string, payload any) (string, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode event %q: %w", name, err)
	}
	return string([]byte{engineMessage, socketEvent}) + namespacePrefix(namespace) + string(data), nil
}
