package session

import (
	"sync"

	"audiogen/internal/api"
	"audiogen/internal/reconcile"
)

// JobWatcher is a View that reports when the job for one prompt completes.
// Combine it with the real view through render.Multi.
type JobWatcher struct {
	prompt string

	once   sync.Once
	done   chan struct{}
	result api.CompletedItem
	failed string
}

// NewJobWatcher watches for prompt.
func NewJobWatcher(prompt string) *JobWatcher {
	return &JobWatcher{prompt: prompt, done: make(chan struct{})}
}

// Done closes when the job's result is rendered or the server reports an
// error for it.
func (w *JobWatcher) Done() <-chan struct{} {
	return w.done
}

// Result returns the completed item and true, or the server's error text and
// false. Only meaningful after Done has closed.
func (w *JobWatcher) Result() (api.CompletedItem, string, bool) {
	return w.result, w.failed, w.failed == ""
}

func (w *JobWatcher) SetQueue([]reconcile.Entry) {}

func (w *JobWatcher) SetUpload(reconcile.UploadState) {}

func (w *JobWatcher) ReplaceResults([]api.CompletedItem) {}

func (w *JobWatcher) SetStatus(status reconcile.Status) {
	if status.Kind != reconcile.KindError || status.Prompt != w.prompt {
		return
	}
	w.once.Do(func() {
		w.failed = status.Text
		if w.failed == "" {
			w.failed = "error"
		}
		close(w.done)
	})
}

func (w *JobWatcher) AddResult(item api.CompletedItem, _ reconcile.Order) {
	if item.Prompt != w.prompt {
		return
	}
	w.once.Do(func() {
		w.result = item
		close(w.done)
	})
}
