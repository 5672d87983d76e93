// Package render materializes the reconciler's view for humans.
//
// Board is the in-memory view model: queue rows, the status bar, the upload
// indicator and the results list. Terminal draws the same changes to a
// writer, with a progress bar for the status and go-pretty tables for
// results. Multi fans every change out to several views so a session can
// keep a Board for inspection while a Terminal draws.
package render
