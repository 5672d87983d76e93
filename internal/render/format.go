package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"audiogen/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.English)

// ModelLabel title-cases a model identifier for display.
func ModelLabel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(model, "_", " "))
}

// RelativeTime renders t relative to now, or "unknown" for the zero time.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// ParamSummary renders parameters as name=value pairs in document order.
func ParamSummary(params api.Params) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Name+"="+api.FormatValue(p.Value))
	}
	return strings.Join(parts, " ")
}

// ShouldColorize resolves a colour mode (auto, always, never) for writer.
func ShouldColorize(writer io.Writer, mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// LineKind selects the label and colour of a StatusLine.
type LineKind int

const (
	LineInfo LineKind = iota
	LineOK
	LineWarn
	LineError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// StatusLine renders one "label: [KIND] message" check line.
func StatusLine(label string, kind LineKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", kind.label())
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		return kind.color() + base + ansiReset
	}
	return base
}

// SectionHeader renders a "== Title ==" heading and its underline.
func SectionHeader(title string, enabled bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{colorize(enabled, ansiBlue, line), colorize(enabled, ansiBlue, rule)}
}

func (k LineKind) label() string {
	switch k {
	case LineOK:
		return "OK"
	case LineWarn:
		return "WARN"
	case LineError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k LineKind) color() string {
	switch k {
	case LineOK:
		return ansiGreen
	case LineWarn:
		return ansiYellow
	case LineError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func colorize(enabled bool, color, text string) string {
	if !enabled || color == "" {
		return text
	}
	return color + text + ansiReset
}
