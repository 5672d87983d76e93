// Package library keeps a local SQLite index of completed generations.
//
// The server only exposes its history while a session is connected. Every
// history load and live result is recorded here so `audiogen history
// --local` can list, search and locate downloads without a server. Rows are
// keyed by audio reference; recording the same item again refreshes its
// metadata and keeps the local download path.
package library
