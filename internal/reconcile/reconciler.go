package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/events"
	"audiogen/internal/logging"
	"audiogen/internal/metadata"
)

const (
	defaultRevertDelay    = 1200 * time.Millisecond
	defaultStartedPercent = 2
)

// Fetcher retrieves metadata documents for finished jobs.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (metadata.Document, error)
	FetchAll(ctx context.Context, refs []string) []metadata.Result
}

// Options configures a Reconciler. View and Fetcher are required.
type Options struct {
	View    View
	Fetcher Fetcher
	Loop    Loop
	Clock   Clock
	Logger  *slog.Logger
	// RevertDelay is how long "done" stays before the bar returns to idle.
	// Zero reverts on the next loop task.
	RevertDelay    time.Duration
	StartedPercent float64
}

// Reconciler applies server events to the queue, status bar and results.
// All methods must be called from the event loop.
type Reconciler struct {
	view           View
	fetcher        Fetcher
	loop           Loop
	clock          Clock
	logger         *slog.Logger
	sampler        *logging.ProgressSampler
	revertDelay    time.Duration
	startedPercent float64

	queue  []Entry
	status Status
	upload UploadState

	revert     Timer
	generation uint64
	lastError  events.Error
	hasError   bool
}

// New builds a Reconciler and publishes the initial idle state to the view.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		view:           opts.View,
		fetcher:        opts.Fetcher,
		loop:           opts.Loop,
		clock:          opts.Clock,
		logger:         logging.NewComponentLogger(opts.Logger, "reconcile"),
		sampler:        logging.NewProgressSampler(5),
		revertDelay:    opts.RevertDelay,
		startedPercent: opts.StartedPercent,
		status:         IdleStatus(),
		upload:         UploadState{Kind: UploadNone},
	}
	if r.loop == nil {
		r.loop = Inline{}
	}
	if r.clock == nil {
		r.clock = SystemClock{}
	}
	if r.revertDelay < 0 {
		r.revertDelay = defaultRevertDelay
	}
	if r.startedPercent <= 0 {
		r.startedPercent = defaultStartedPercent
	}
	r.view.SetQueue(nil)
	r.view.SetStatus(r.status)
	r.view.SetUpload(r.upload)
	return r
}

// Queue returns a copy of the in-flight entries, head first.
func (r *Reconciler) Queue() []Entry {
	return slices.Clone(r.queue)
}

// Status returns the current status bar.
func (r *Reconciler) Status() Status {
	return r.status
}

// Upload returns the current upload indicator.
func (r *Reconciler) Upload() UploadState {
	return r.upload
}

// Handle dispatches an event to its handler. A panic inside a handler is
// recovered and returned as a protocol error.
func (r *Reconciler) Handle(ctx context.Context, ev events.Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = api.Wrap(api.ErrProtocol, "reconcile", "handle", fmt.Sprintf("handler panic: %v", recovered), nil)
			logging.ErrorWithContext(r.logger, "event handler panicked", "handler_panic",
				logging.String(logging.FieldEvent, eventName(ev)),
				logging.Error(err),
			)
		}
	}()

	switch e := ev.(type) {
	case events.AddToQueue:
		r.OnQueueEvent(e.Prompt)
	case events.Progress:
		r.OnProgressEvent(e.Fraction)
	case events.FinishAudio:
		r.OnFinishEvent(ctx, e)
	case events.Status:
		r.OnStatusEvent(e.Prompt, e.State)
	case events.Error:
		r.OnErrorEvent(e.Prompt, e.Message)
	case events.AudioJSONPairs:
		r.OnAudioPairs(ctx, e.Pairs)
	case nil:
		return api.Wrap(api.ErrProtocol, "reconcile", "handle", "nil event", nil)
	default:
		return api.Wrap(api.ErrProtocol, "reconcile", "handle", fmt.Sprintf("unhandled event %T", ev), nil)
	}
	return nil
}

// OnMalformed reports an inbound event that failed to decode. State is left
// untouched apart from the status text.
func (r *Reconciler) OnMalformed(name string, err error) {
	logging.WarnWithContext(r.logger, "ignoring malformed event", "event_malformed",
		logging.String(logging.FieldEvent, name),
		logging.Error(err),
		logging.String(logging.FieldImpact, "event skipped; queue unchanged"),
		logging.String(logging.FieldErrorHint, "check server and client versions match"),
	)
	r.Notify(fmt.Sprintf("error: malformed %s event", name))
}

// OnQueueEvent appends a job at the tail.
func (r *Reconciler) OnQueueEvent(prompt string) {
	r.queue = append(r.queue, Entry{Prompt: prompt, Position: len(r.queue) + 1})
	r.logger.Info("job queued",
		logging.String(logging.FieldPrompt, prompt),
		logging.Int("position", len(r.queue)),
	)
	r.publishQueue()
}

// OnProgressEvent applies a clamped fraction to the head job. With an empty
// queue only the status bar changes.
func (r *Reconciler) OnProgressEvent(fraction float64) {
	fraction = clamp(fraction)
	var prompt string
	if len(r.queue) == 0 {
		r.logger.Debug("progress with empty queue", logging.Float64("fraction", fraction))
	} else {
		r.queue[0].Progress = fraction
		prompt = r.queue[0].Prompt
		r.publishQueue()
	}
	percent := fraction * 100
	if r.sampler.ShouldLog(percent, prompt) {
		r.logger.Info("generation progress",
			logging.String(logging.FieldPrompt, prompt),
			logging.Float64("progress_percent", percent),
		)
	}
	r.setStatus(Status{
		Kind:    KindProgressing,
		Percent: percent,
		Text:    fmt.Sprintf("generating %d%%", int(math.Floor(percent))),
		Prompt:  prompt,
	})
}

// OnFinishEvent removes the head job and renders its result once the
// metadata arrives. A finish with an empty queue still renders.
func (r *Reconciler) OnFinishEvent(ctx context.Context, ev events.FinishAudio) {
	if len(r.queue) == 0 {
		logging.WarnWithContext(r.logger, "finish with empty queue", "queue_underflow",
			logging.String("filename", ev.Filename),
			logging.String(logging.FieldImpact, "result still rendered"),
			logging.String(logging.FieldErrorHint, "the matching add_to_queue was probably missed"),
		)
	} else {
		head := r.queue[0]
		r.queue = r.queue[1:]
		r.renumber()
		r.logger.Info("job finished",
			logging.String(logging.FieldPrompt, head.Prompt),
			logging.String("filename", ev.Filename),
			logging.Int("remaining", len(r.queue)),
		)
		r.publishQueue()
	}
	r.sampler.Reset()

	r.loop.Go(func() {
		doc, err := r.fetcher.Fetch(ctx, ev.JSONFilename)
		r.loop.Post(func() {
			if err != nil {
				logging.WarnWithContext(r.logger, "metadata fetch failed", "metadata_fetch_failed",
					logging.String("ref", ev.JSONFilename),
					logging.Error(err),
					logging.String(logging.FieldImpact, "result not shown"),
					logging.String(logging.FieldErrorHint, "run history to reload results"),
				)
				return
			}
			item := api.NewCompletedItem(doc.Metadata, ev.Filename, r.fallbackTime(doc))
			r.view.AddResult(item, OrderRecentFirst)
		})
	})
}

// OnStatusEvent applies a lifecycle transition to the status bar.
func (r *Reconciler) OnStatusEvent(prompt string, state events.StatusState) {
	switch state {
	case events.StateStarted:
		r.hasError = false
		r.sampler.Reset()
		r.setStatus(Status{Kind: KindStarted, Percent: r.startedPercent, Text: "started", Prompt: prompt})
	case events.StateFinished:
		r.setStatus(Status{Kind: KindFinished, Percent: 100, Text: "done", Prompt: prompt})
		r.scheduleRevert()
	case events.StateError:
		text := "error"
		if r.hasError && r.lastError.Prompt == prompt {
			text = "error: " + r.lastError.Message
		}
		r.hasError = false
		r.setStatus(Status{Kind: KindError, Text: text, Prompt: prompt})
	default:
		r.logger.Warn("unknown status state", logging.String("state", string(state)))
	}
}

// OnErrorEvent shows a server-side failure.
func (r *Reconciler) OnErrorEvent(prompt, message string) {
	logging.ErrorWithContext(r.logger, "server reported error", "server_error",
		logging.String(logging.FieldPrompt, prompt),
		logging.String("message", message),
		logging.String(logging.FieldErrorHint, "check the server log"),
	)
	r.lastError = events.Error{Prompt: prompt, Message: message}
	r.hasError = true
	r.setStatus(Status{Kind: KindError, Text: "error: " + message, Prompt: prompt})
}

// OnAudioPairs replaces the results list with the server's history, newest
// first by Last-Modified. Documents that fail to load are skipped.
func (r *Reconciler) OnAudioPairs(ctx context.Context, pairs []events.Pair) {
	if len(pairs) == 0 {
		r.view.ReplaceResults(nil)
		return
	}
	refs := make([]string, len(pairs))
	for i, pair := range pairs {
		refs[i] = pair.JSONFilename
	}

	r.loop.Go(func() {
		fetched := r.fetcher.FetchAll(ctx, refs)
		r.loop.Post(func() {
			r.replaceFromResults(pairs, fetched)
		})
	})
}

func (r *Reconciler) replaceFromResults(pairs []events.Pair, fetched []metadata.Result) {
	type dated struct {
		item     api.CompletedItem
		modified time.Time
	}
	loaded := make([]dated, 0, len(pairs))
	skipped := 0
	for i, res := range fetched {
		if i >= len(pairs) {
			break
		}
		if res.Err != nil {
			skipped++
			logging.WarnWithContext(r.logger, "history entry skipped", "metadata_fetch_failed",
				logging.String("ref", res.Ref),
				logging.Error(res.Err),
				logging.String(logging.FieldImpact, "entry missing from results"),
			)
			continue
		}
		loaded = append(loaded, dated{
			item:     api.NewCompletedItem(res.Document.Metadata, pairs[i].Filename, r.fallbackTime(res.Document)),
			modified: res.Document.LastModified,
		})
	}

	slices.SortStableFunc(loaded, func(a, b dated) int {
		switch {
		case a.modified.IsZero() && b.modified.IsZero():
			return 0
		case a.modified.IsZero():
			return 1
		case b.modified.IsZero():
			return -1
		}
		return b.modified.Compare(a.modified)
	})

	items := make([]api.CompletedItem, len(loaded))
	for i, d := range loaded {
		items[i] = d.item
	}
	r.view.ReplaceResults(items)
	r.logger.Info("history loaded",
		logging.Int("results", len(items)),
		logging.Int("skipped", skipped),
	)
}

// Notify sets the status text without changing kind or percent.
func (r *Reconciler) Notify(text string) {
	next := r.status
	next.Text = text
	r.setStatus(next)
}

// SetUpload updates the melody upload indicator.
func (r *Reconciler) SetUpload(state UploadState) {
	r.upload = state
	r.logger.Info("upload state changed",
		logging.String("kind", string(state.Kind)),
		logging.String("path", state.Path),
	)
	r.view.SetUpload(state)
}

func (r *Reconciler) setStatus(next Status) {
	r.cancelRevert()
	r.status = next
	r.view.SetStatus(next)
}

func (r *Reconciler) scheduleRevert() {
	generation := r.generation
	r.revert = r.clock.AfterFunc(r.revertDelay, func() {
		r.loop.Post(func() {
			if generation != r.generation {
				return
			}
			r.revert = nil
			r.status = IdleStatus()
			r.view.SetStatus(r.status)
		})
	})
}

// cancelRevert stops a pending finished revert. The generation counter
// covers timers that already fired and are waiting on the loop.
func (r *Reconciler) cancelRevert() {
	r.generation++
	if r.revert != nil {
		r.revert.Stop()
		r.revert = nil
	}
}

func (r *Reconciler) renumber() {
	for i := range r.queue {
		r.queue[i].Position = i + 1
	}
}

func (r *Reconciler) publishQueue() {
	r.view.SetQueue(slices.Clone(r.queue))
}

func (r *Reconciler) fallbackTime(doc metadata.Document) time.Time {
	if !doc.LastModified.IsZero() {
		return doc.LastModified
	}
	return r.clock.Now()
}

func clamp(fraction float64) float64 {
	switch {
	case math.IsNaN(fraction):
		return 0
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	}
	return fraction
}

func eventName(ev events.Event) string {
	if ev == nil {
		return ""
	}
	return ev.Name()
}
