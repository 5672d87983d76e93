package render

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"audiogen/internal/api"
	"audiogen/internal/reconcile"
)

// TerminalOptions configures a Terminal.
type TerminalOptions struct {
	// Color enables ANSI colour codes.
	Color bool
	// Bar draws the status as a live progress bar. Without it, status
	// changes are printed as lines and progress is reported in 10% steps.
	Bar bool
	// Now supplies the clock for relative times.
	Now func() time.Time
}

// Terminal draws reconciler changes to a writer.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	opts   TerminalOptions
	bar    *progressbar.ProgressBar
	status reconcile.Status
	queue  []string
	bucket int
}

// NewTerminal builds a Terminal writing to out.
func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Terminal{out: out, opts: opts, status: reconcile.IdleStatus(), bucket: -1}
	if opts.Bar {
		t.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription("idle"),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionEnableColorCodes(opts.Color),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return t
}

func (t *Terminal) SetQueue(entries []reconcile.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prompts := make([]string, len(entries))
	for i, e := range entries {
		prompts[i] = e.Prompt
	}
	if slices.Equal(prompts, t.queue) {
		return
	}
	t.queue = prompts
	t.printBlock(func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, t.paint(ansiBlue, "queue empty"))
			return
		}
		fmt.Fprintln(w, t.paint(ansiBlue, fmt.Sprintf("queue (%d)", len(entries))))
		fmt.Fprintln(w, QueueTable(entries))
	})
}

func (t *Terminal) SetStatus(status reconcile.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous := t.status
	t.status = status

	if t.bar != nil {
		t.bar.Reset()
		t.bar.Describe(t.barDescription(status))
		_ = t.bar.Set(int(math.Floor(status.Percent)))
		return
	}

	if status.Kind == reconcile.KindProgressing {
		bucket := int(status.Percent) / 10
		if previous.Kind == reconcile.KindProgressing && bucket <= t.bucket {
			return
		}
		t.bucket = bucket
	} else {
		t.bucket = -1
		if status == previous {
			return
		}
	}
	fmt.Fprintln(t.out, t.statusLine(status))
}

func (t *Terminal) SetUpload(state reconcile.UploadState) {
	if state.Kind == reconcile.UploadNone {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	color := ansiGreen
	if state.Kind != reconcile.UploadUploaded {
		color = ansiRed
	}
	t.printBlock(func(w io.Writer) {
		fmt.Fprintln(w, t.paint(color, "melody "+state.Text))
	})
}

func (t *Terminal) AddResult(item api.CompletedItem, _ reconcile.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printBlock(func(w io.Writer) {
		fmt.Fprintln(w, t.paint(ansiGreen, "finished: "+item.Prompt))
		fmt.Fprintln(w, ResultsTable([]api.CompletedItem{item}, t.opts.Now()))
	})
}

func (t *Terminal) ReplaceResults(items []api.CompletedItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printBlock(func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintln(w, t.paint(ansiBlue, "no previous results"))
			return
		}
		fmt.Fprintln(w, t.paint(ansiBlue, fmt.Sprintf("history (%d)", len(items))))
		fmt.Fprintln(w, ResultsTable(items, t.opts.Now()))
	})
}

// printBlock clears the live bar, writes the block, then redraws the bar.
func (t *Terminal) printBlock(write func(io.Writer)) {
	if t.bar != nil {
		_ = t.bar.Clear()
	}
	write(t.out)
	if t.bar != nil {
		t.bar.Reset()
		t.bar.Describe(t.barDescription(t.status))
		_ = t.bar.Set(int(math.Floor(t.status.Percent)))
	}
}

func (t *Terminal) statusLine(status reconcile.Status) string {
	line := "status: " + status.Text
	if status.Prompt != "" && status.Kind != reconcile.KindIdle {
		line += fmt.Sprintf(" (%s)", truncate(status.Prompt, 40))
	}
	return t.paint(statusColor(status.Kind), line)
}

func (t *Terminal) barDescription(status reconcile.Status) string {
	text := fmt.Sprintf("%-16s", truncate(status.Text, 16))
	if !t.opts.Color {
		return text
	}
	switch status.Kind {
	case reconcile.KindFinished:
		return "[green]" + text + "[reset]"
	case reconcile.KindError:
		return "[red]" + text + "[reset]"
	case reconcile.KindIdle:
		return text
	default:
		return "[cyan]" + text + "[reset]"
	}
}

func (t *Terminal) paint(color, text string) string {
	return colorize(t.opts.Color, color, text)
}

func statusColor(kind reconcile.Kind) string {
	switch kind {
	case reconcile.KindFinished:
		return ansiGreen
	case reconcile.KindError:
		return ansiRed
	case reconcile.KindIdle:
		return ""
	default:
		return ansiYellow
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
