package logging

import (
	"log/slog"
	"slices"
)

// tee sends each record to every non-nil handler whose level admits it. The
// log file and the console warnings share one logger this way.
func tee(handlers ...slog.Handler) slog.Handler {
	live := slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return slog.NewMultiHandler(live...)
}
