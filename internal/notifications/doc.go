// Package notifications pushes generation outcomes to ntfy.
//
// NewService returns an ntfy-backed Service when a topic URL is configured
// and a no-op otherwise. Notifier adapts a Service to the reconciler's View
// so finished and failed jobs are published without blocking the event loop.
package notifications
