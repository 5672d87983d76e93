// Package logging assembles structured slog loggers and formatting helpers used
// across audiogen.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session and request code can
// tag log lines with session IDs, request IDs and prompts. The terminal is
// usually busy with the queue board, so loggers built from config write to the
// state directory log file and only tee warnings to stderr when asked.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
