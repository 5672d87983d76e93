package library

import (
	"context"
	"log/slog"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/logging"
	"audiogen/internal/reconcile"
)

// Recorder is a View that indexes every history load and live result. A
// failed write is logged and does not affect the session.
type Recorder struct {
	ctx    context.Context
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder records into store until ctx ends.
func NewRecorder(ctx context.Context, store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		ctx:    ctx,
		store:  store,
		logger: logging.NewComponentLogger(logger, "library"),
		now:    time.Now,
	}
}

func (r *Recorder) SetQueue([]reconcile.Entry) {}

func (r *Recorder) SetStatus(reconcile.Status) {}

func (r *Recorder) SetUpload(reconcile.UploadState) {}

func (r *Recorder) AddResult(item api.CompletedItem, _ reconcile.Order) {
	r.record([]api.CompletedItem{item})
}

func (r *Recorder) ReplaceResults(items []api.CompletedItem) {
	r.record(items)
}

func (r *Recorder) record(items []api.CompletedItem) {
	added, err := r.store.Record(r.ctx, items, r.now())
	if err != nil {
		logging.WarnWithContext(r.logger, "library update failed", "library_write_failed",
			logging.Error(err),
			logging.Int("results", len(items)),
			logging.String(logging.FieldImpact, "results are missing from history --local"),
			logging.String(logging.FieldErrorHint, "check permissions on "+r.store.Path()),
		)
		return
	}
	if added > 0 {
		r.logger.Debug("library updated", logging.Int("added", added), logging.Int("results", len(items)))
	}
}
