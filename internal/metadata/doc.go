// Package metadata fetches generation metadata documents and audio files the
// server exposes under static paths.
//
// References arrive in events as server-relative paths; the Client resolves
// them against the configured base URL. FetchAll fans out across a bounded
// worker group and reports per-reference results so one bad document never
// hides the rest.
package metadata
