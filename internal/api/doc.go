// Package api defines the wire-format types shared by the audiogen client
// packages: generation requests, ordered parameter maps, metadata documents
// and completed result items.
//
// # Key Types
//
// GenerationRequest: payload of the outbound submit_sliders event.
//
// Params: ordered name/value pairs. JSON encoding keeps insertion order and
// decoding keeps document order so parameters render in the order the server
// wrote them.
//
// Metadata: the JSON document the server writes next to every generated
// audio file.
//
// CompletedItem: a finished generation as shown in the results list.
//
// # Errors
//
// The sentinel markers in errors.go classify failures by origin (validation,
// upload, protocol, fetch, transport). Wrap them with Wrap and test with
// errors.Is; none of them is fatal to a session.
package api
