package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"audiogen/internal/api"
	"audiogen/internal/events"
	"audiogen/internal/lastrun"
	"audiogen/internal/logging"
	"audiogen/internal/reconcile"
	"audiogen/internal/submission"
	"audiogen/internal/transport"
	"audiogen/internal/upload"
)

const taskBuffer = 64

// Uploader stores melody files on the server.
type Uploader interface {
	Upload(ctx context.Context, path string) (upload.Result, error)
}

// RunStore persists the most recent submission.
type RunStore interface {
	Save(ctx context.Context, rec lastrun.Record) error
}

// Options configures Open. ServerURL, View and Fetcher are required.
type Options struct {
	// ID identifies the session in logs. A random UUID is used when empty.
	ID             string
	ServerURL      string
	Transport      transport.Options
	View           reconcile.View
	Fetcher        reconcile.Fetcher
	Uploader       Uploader
	LastRun        RunStore
	Clock          reconcile.Clock
	Logger         *slog.Logger
	RevertDelay    time.Duration
	StartedPercent float64
}

// Session is one connection to the server and its event loop.
type Session struct {
	id       string
	client   *transport.Client
	rec      *reconcile.Reconciler
	uploader Uploader
	lastRun  RunStore
	clock    reconcile.Clock
	logger   *slog.Logger

	tasks   chan func()
	done    chan struct{}
	workers sync.WaitGroup

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Open dials the server and prepares the reconciler. Events that arrive
// before Run starts are buffered by the transport.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.View == nil {
		return nil, api.Wrap(api.ErrConfiguration, "session", "open", "view is required", nil)
	}
	if opts.Fetcher == nil {
		return nil, api.Wrap(api.ErrConfiguration, "session", "open", "metadata fetcher is required", nil)
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	base := opts.Logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.NewComponentLogger(base.With(logging.String(logging.FieldSessionID, id)), "session")
	clock := opts.Clock
	if clock == nil {
		clock = reconcile.SystemClock{}
	}

	transportOpts := opts.Transport
	if transportOpts.Logger == nil {
		transportOpts.Logger = logger
	}
	client, err := transport.Dial(ctx, opts.ServerURL, transportOpts)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		client:   client,
		uploader: opts.Uploader,
		lastRun:  opts.LastRun,
		clock:    clock,
		logger:   logger,
		tasks:    make(chan func(), taskBuffer),
		done:     make(chan struct{}),
		ctx:      loopCtx,
		cancel:   cancel,
	}
	s.rec = reconcile.New(reconcile.Options{
		View:           opts.View,
		Fetcher:        opts.Fetcher,
		Loop:           s,
		Clock:          clock,
		Logger:         logger,
		RevertDelay:    opts.RevertDelay,
		StartedPercent: opts.StartedPercent,
	})
	logger.Info("session connected",
		logging.String("server", opts.ServerURL),
		logging.String("sid", client.SID()),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close disconnects without running the loop. It is only needed when Run
// is never called.
func (s *Session) Close() error {
	s.cancel()
	return s.client.Close()
}

// Post schedules fn on the event loop. Work posted after the loop has
// stopped is dropped.
func (s *Session) Post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// Go runs fn on a worker goroutine tracked by the session.
func (s *Session) Go(fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

// Run processes events until ctx is cancelled or the connection ends. A
// cancelled context is a clean shutdown and returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return errors.New("session already running")
	}
	s.running = true
	s.runMu.Unlock()

	defer func() {
		s.cancel()
		close(s.done)
		_ = s.client.Close()
		s.workers.Wait()
		s.logger.Info("session closed")
	}()

	messages := s.client.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.tasks:
			fn()
		case msg, ok := <-messages:
			if !ok {
				return s.connectionLost()
			}
			s.dispatch(msg)
		}
	}
}

func (s *Session) dispatch(msg transport.Message) {
	ev, err := events.Decode(msg.Event, msg.Data)
	if err != nil {
		s.rec.OnMalformed(msg.Event, err)
		return
	}
	if err := s.rec.Handle(s.ctx, ev); err != nil {
		logging.WarnWithContext(s.logger, "event handling failed", "event_failed",
			logging.String(logging.FieldEvent, msg.Event),
			logging.Error(err),
			logging.String(logging.FieldImpact, "event skipped"),
		)
	}
}

func (s *Session) connectionLost() error {
	err := s.client.Err()
	if err == nil {
		return nil
	}
	logging.ErrorWithContext(s.logger, "connection lost", "transport_lost",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the server is still running"),
	)
	s.rec.Notify("error: connection lost")
	return err
}

// Submit validates form and emits the generation request. Validation
// failures are shown as status text and returned without emitting.
func (s *Session) Submit(ctx context.Context, form submission.Form) (api.GenerationRequest, error) {
	req, err := submission.Build(form)
	if err != nil {
		if submission.IsValidation(err) {
			text := "error: " + validationText(err)
			s.Post(func() { s.rec.Notify(text) })
		}
		return api.GenerationRequest{}, err
	}

	ctx = logging.WithRequestID(ctx, uuid.NewString())
	ctx = logging.WithPrompt(ctx, req.Prompt)
	logger := logging.WithContext(ctx, s.logger)

	if err := s.client.Emit(ctx, api.SubmitEvent, req); err != nil {
		logging.ErrorWithContext(logger, "submit failed", "submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "reconnect and submit again"),
		)
		return api.GenerationRequest{}, err
	}
	logger.Info("generation submitted",
		logging.String("model", req.Model),
		logging.Bool("advanced", req.Advanced()),
		logging.String("melody", req.MelodyURL),
	)

	if s.lastRun != nil {
		if err := s.lastRun.Save(ctx, lastrun.FromRequest(req, s.clock.Now())); err != nil {
			logging.WarnWithContext(logger, "failed to save last run", "last_run_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "submit --repeat will use older settings"),
			)
		}
	}
	return req, nil
}

// UploadMelody stores path on the server and reflects the outcome in the
// upload indicator. The returned path feeds Form.MelodyRef.
func (s *Session) UploadMelody(ctx context.Context, path string) (upload.Result, error) {
	if s.uploader == nil {
		return upload.Result{}, api.Wrap(api.ErrConfiguration, "session", "upload", "no uploader configured", nil)
	}
	result, err := s.uploader.Upload(ctx, path)
	var state reconcile.UploadState
	switch {
	case err == nil:
		state = reconcile.Uploaded(result.Path)
	case errors.Is(err, upload.ErrUnsupported):
		state = reconcile.UploadRejected(result.MIME)
	default:
		state = reconcile.UploadFailure(err)
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "melody upload failed", "upload_failed",
			logging.String("file", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "melody mode submissions are blocked"),
		)
	}
	s.Post(func() { s.rec.SetUpload(state) })
	return result, err
}

// validationText strips the marker prefix so status text reads naturally.
func validationText(err error) string {
	msg := err.Error()
	prefix := api.ErrValidation.Error() + ": "
	return strings.TrimPrefix(msg, prefix)
}
