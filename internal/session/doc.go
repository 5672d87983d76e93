// Package session connects to a generation server and runs the event loop
// that feeds a reconcile.Reconciler.
//
// Open dials the Socket.IO channel and builds the reconciler with the
// session as its Loop. Run then owns the loop goroutine: inbound events,
// posted continuations and timer callbacks all execute there one at a
// time. Submit and UploadMelody are safe to call from other goroutines;
// they hand their status updates to the loop rather than touching
// reconciler state directly.
package session
