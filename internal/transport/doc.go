// Package transport implements the realtime event channel to the generation
// server: a Socket.IO (protocol v5) client running Engine.IO v4 directly over
// a websocket.
//
// Dial performs the Engine.IO open handshake and the namespace connect,
// answers server pings, and exposes inbound events as a channel of named JSON
// payloads. Emit sends an event. Only the subset the server uses is
// supported: text event packets on a single namespace, no acknowledgements and
// no binary attachments.
package transport
