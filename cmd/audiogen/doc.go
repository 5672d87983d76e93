// Package main hosts the audiogen CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into sessions
// against a generation server: watching the live queue, submitting
// requests, uploading melodies, listing or downloading history, and
// checking readiness. It centralizes configuration resolution and logging
// setup so subcommands only describe what they show.
//
// Keep this package lean: behaviour lives in the internal packages and is
// surfaced here through flags and output formatting.
package main
