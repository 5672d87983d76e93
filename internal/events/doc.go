// Package events models the server-pushed event contract as a closed set of
// typed variants.
//
// Decode turns a wire event name and its raw JSON payload into exactly one
// variant; consumers switch over the concrete types. Unknown names and
// payloads missing required fields are reported as protocol errors so the
// caller can log and drop them without disturbing its state.
package events
