package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"audiogen/internal/api"
	"audiogen/internal/logging"
)

const (
	defaultPath         = "/socket.io/"
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultBuffer       = 64
	// Used until the open packet announces the server's ping schedule.
	handshakeReadTimeout = 10 * time.Second
)

// Options configures Dial.
type Options struct {
	Path        string
	Namespace   string
	DialTimeout time.Duration
	Header      http.Header
	Buffer      int
	Logger      *slog.Logger
}

// Message is one inbound event. Data is the event's first argument.
type Message struct {
	Event string
	Data  json.RawMessage
}

// Client is a connected Socket.IO channel.
type Client struct {
	conn      *websocket.Conn
	namespace string
	sid       string
	logger    *slog.Logger
	idle      time.Duration

	writeMu  sync.Mutex
	messages chan Message
	done     chan struct{}

	closeOnce sync.Once
	closing   chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to serverURL (http, https, ws or wss) and joins the
// configured namespace.
func Dial(ctx context.Context, serverURL string, opts Options) (*Client, error) {
	endpoint, err := websocketURL(serverURL, opts.Path)
	if err != nil {
		return nil, api.Wrap(api.ErrConfiguration, "transport", "dial", "invalid server url", err)
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		namespace = "/"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, api.Wrap(api.ErrTransport, "transport", "dial", fmt.Sprintf("handshake returned status %d", resp.StatusCode), err)
		}
		return nil, api.Wrap(api.ErrTransport, "transport", "dial", endpoint, err)
	}

	c := &Client{
		conn:      conn,
		namespace: namespace,
		logger:    logging.NewComponentLogger(logger, "transport"),
		messages:  make(chan Message, buffer),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
	}
	pending, err := c.handshake(dialCtx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop(pending)
	return c, nil
}

// SID returns the Engine.IO session id assigned by the server.
func (c *Client) SID() string {
	return c.sid
}

// Messages delivers inbound events in arrival order. The channel closes when
// the connection ends; Err then reports why.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Done closes once the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil after Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Emit sends a named event with a single JSON payload argument.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	frame, err := encodeEvent(c.namespace, event, payload)
	if err != nil {
		return api.Wrap(api.ErrProtocol, "transport", "emit", event, err)
	}
	if err := c.write(ctx, frame); err != nil {
		return api.Wrap(api.ErrTransport, "transport", "emit", event, err)
	}
	c.logger.Debug("event emitted", logging.String("event", event))
	return nil
}

// Close disconnects from the namespace and closes the socket. It waits for
// the read loop to exit.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.write(context.Background(), encodeDisconnect(c.namespace))
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = err
		}
	})
	<-c.done
	return closeErr
}

func (c *Client) write(ctx context.Context, frame string) error {
	deadline := time.Now().Add(defaultWriteTimeout)
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// handshake reads the open packet, joins the namespace and waits for the
// connect acknowledgement. Servers may emit events from their connect
// handler before acknowledging; those are returned for delivery first.
func (c *Client) handshake(ctx context.Context) ([]Message, error) {
	deadline := time.Now().Add(handshakeReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "", err)
	}

	frame, err := c.readFrame()
	if err != nil {
		return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "read open packet", err)
	}
	kind, body, err := splitEngine(frame)
	if err != nil || kind != engineOpen {
		return nil, api.Wrap(api.ErrProtocol, "transport", "handshake", fmt.Sprintf("expected open packet, got %q", frame), err)
	}
	var open openPayload
	if err := json.Unmarshal([]byte(body), &open); err != nil {
		return nil, api.Wrap(api.ErrProtocol, "transport", "handshake", "decode open packet", err)
	}
	c.sid = open.SID
	if open.PingInterval > 0 {
		c.idle = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	if err := c.write(ctx, encodeConnect(c.namespace)); err != nil {
		return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "send connect", err)
	}

	var pending []Message
	for {
		frame, err := c.readFrame()
		if err != nil {
			return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "await connect", err)
		}
		kind, body, err := splitEngine(frame)
		if err != nil {
			return nil, api.Wrap(api.ErrProtocol, "transport", "handshake", "", err)
		}
		switch kind {
		case enginePing:
			if err := c.write(ctx, string(enginePong)+body); err != nil {
				return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "send pong", err)
			}
			continue
		case engineMessage:
		case engineClose:
			return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "server closed session", nil)
		default:
			continue
		}
		pkt, err := parseSocket(body)
		if err != nil {
			return nil, api.Wrap(api.ErrProtocol, "transport", "handshake", "", err)
		}
		if pkt.namespace != c.namespace {
			continue
		}
		switch pkt.kind {
		case socketConnect:
			c.logger.Debug("socket connected", logging.String("sid", c.sid), logging.String("namespace", c.namespace))
			return pending, nil
		case socketConnectError:
			return nil, api.Wrap(api.ErrTransport, "transport", "handshake", "connect refused: "+connectErrorMessage(pkt.data), nil)
		case socketEvent:
			if msg, err := toMessage(pkt); err == nil {
				pending = append(pending, msg)
			}
		}
	}
}

func (c *Client) readLoop(pending []Message) {
	defer close(c.done)
	defer close(c.messages)

	for _, msg := range pending {
		if !c.deliver(msg) {
			return
		}
	}
	for {
		if c.idle > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.idle))
		} else {
			_ = c.conn.SetReadDeadline(time.Time{})
		}
		frame, err := c.readFrame()
		if err != nil {
			c.fail(err)
			return
		}
		kind, body, err := splitEngine(frame)
		if err != nil {
			c.logger.Warn("dropping malformed frame", logging.Error(err))
			continue
		}
		switch kind {
		case enginePing:
			if err := c.write(context.Background(), string(enginePong)+body); err != nil {
				c.fail(err)
				return
			}
		case engineClose:
			c.fail(api.Wrap(api.ErrTransport, "transport", "read", "server closed session", nil))
			return
		case engineMessage:
			if !c.handleSocket(body) {
				return
			}
		}
	}
}

// handleSocket processes one Socket.IO packet and reports whether the read
// loop should continue.
func (c *Client) handleSocket(body string) bool {
	pkt, err := parseSocket(body)
	if err != nil {
		c.logger.Warn("dropping malformed packet", logging.Error(err))
		return true
	}
	if pkt.namespace != c.namespace {
		return true
	}
	switch pkt.kind {
	case socketEvent:
		msg, err := toMessage(pkt)
		if err != nil {
			c.logger.Warn("dropping malformed event", logging.Error(err))
			return true
		}
		return c.deliver(msg)
	case socketDisconnect:
		c.fail(api.Wrap(api.ErrTransport, "transport", "read", "server disconnected namespace", nil))
		return false
	case socketConnectError:
		c.fail(api.Wrap(api.ErrTransport, "transport", "read", "connect error: "+connectErrorMessage(pkt.data), nil))
		return false
	}
	return true
}

func (c *Client) deliver(msg Message) bool {
	select {
	case c.messages <- msg:
		return true
	case <-c.closing:
		return false
	}
}

func (c *Client) fail(err error) {
	select {
	case <-c.closing:
		return
	default:
	}
	if !errors.Is(err, api.ErrTransport) {
		err = api.Wrap(api.ErrTransport, "transport", "read", "", err)
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	_ = c.conn.Close()
}

func (c *Client) readFrame() (string, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func toMessage(pkt socketPacket) (Message, error) {
	if pkt.data == nil {
		return Message{}, errors.New("event packet without data")
	}
	name, arg, err := eventArgs(pkt.data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: name, Data: arg}, nil
}

func connectErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if len(data) > 0 && json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	if len(data) > 0 {
		return string(data)
	}
	return "unknown reason"
}

func websocketURL(serverURL, path string) (string, error) {
	raw := strings.TrimSpace(serverURL)
	if raw == "" {
		return "", errors.New("server url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	query := u.Query()
	query.Set("EIO", "4")
	query.Set("transport", "websocket")
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String(), nil
}
