package notifications

import (
	"context"
	"log/slog"
	"sync"

	"audiogen/internal/api"
	"audiogen/internal/logging"
	"audiogen/internal/reconcile"
)

// Notifier is a View that publishes live results and job errors. Sends run
// on their own goroutines; call Wait before exiting to let them finish.
// History loads are never published.
type Notifier struct {
	ctx    context.Context
	svc    Service
	logger *slog.Logger

	wg         sync.WaitGroup
	lastFailed string
}

// NewNotifier publishes through svc until ctx ends.
func NewNotifier(ctx context.Context, svc Service, logger *slog.Logger) *Notifier {
	return &Notifier{
		ctx:    ctx,
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
}

// Wait blocks until every started send has returned.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) SetQueue([]reconcile.Entry) {}

func (n *Notifier) SetUpload(reconcile.UploadState) {}

func (n *Notifier) ReplaceResults([]api.CompletedItem) {}

func (n *Notifier) AddResult(item api.CompletedItem, _ reconcile.Order) {
	n.dispatch("finished", item.Prompt, func(ctx context.Context) error {
		return n.svc.NotifyGenerationFinished(ctx, item.Prompt, item.Model, item.AudioRef)
	})
}

// SetStatus publishes error statuses that belong to a job. Consecutive
// errors for the same prompt are sent once.
func (n *Notifier) SetStatus(status reconcile.Status) {
	if status.Kind != reconcile.KindError {
		n.lastFailed = ""
		return
	}
	if status.Prompt == "" || status.Prompt == n.lastFailed {
		return
	}
	n.lastFailed = status.Prompt
	n.dispatch("failed", status.Prompt, func(ctx context.Context) error {
		return n.svc.NotifyGenerationFailed(ctx, status.Prompt, status.Text)
	})
}

func (n *Notifier) dispatch(kind, prompt string, send func(context.Context) error) {
	if !Enabled(n.svc) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := send(n.ctx); err != nil {
			logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
				logging.String("notification", kind),
				logging.String(logging.FieldPrompt, prompt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "generation outcome was not pushed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			)
			return
		}
		n.logger.Debug("notification sent",
			logging.String("notification", kind),
			logging.String(logging.FieldPrompt, prompt),
		)
	}()
}
