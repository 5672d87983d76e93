package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// fileTimeLayout keeps every timestamp the same width so `audiogen logs`
// output lines up.
const fileTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// maxLoggedPrompt caps prompt values; the full text is in the result history.
const maxLoggedPrompt = 160

// newFileHandler writes one JSON object per line for the log file.
func newFileHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: fileAttr,
	})
}

func fileAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if a.Value.Kind() == slog.KindTime {
			return slog.String("ts", a.Value.Time().UTC().Format(fileTimeLayout))
		}
		a.Key = "ts"
	case slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(a.Key, strings.ToLower(level.String()))
		}
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(a.Key, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
		}
	case FieldPrompt:
		if a.Value.Kind() == slog.KindString {
			return slog.String(a.Key, clipPrompt(a.Value.String()))
		}
	}
	return a
}

func clipPrompt(prompt string) string {
	if utf8.RuneCountInString(prompt) <= maxLoggedPrompt {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:maxLoggedPrompt-1]) + "…"
}
