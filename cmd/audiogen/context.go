package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"audiogen/internal/api"
	"audiogen/internal/config"
	"audiogen/internal/lastrun"
	"audiogen/internal/library"
	"audiogen/internal/logging"
	"audiogen/internal/metadata"
	"audiogen/internal/notifications"
	"audiogen/internal/reconcile"
	"audiogen/internal/render"
	"audiogen/internal/session"
	"audiogen/internal/transport"
	"audiogen/internal/upload"
)

type commandContext struct {
	configFlag *string
	colorFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, colorFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		colorFlag:  colorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) colorize(w io.Writer) bool {
	mode := ""
	if c.colorFlag != nil {
		mode = strings.TrimSpace(*c.colorFlag)
	}
	if mode == "" {
		if cfg := c.configValue(); cfg != nil {
			mode = cfg.Display.Color
		}
	}
	return render.ShouldColorize(w, mode)
}

// logger writes to the state directory log and shows warnings on the
// command's stderr.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr(), "")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) metadataClient(logger *slog.Logger) (*metadata.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return metadata.NewClient(cfg.Server.URL, cfg.RequestTimeout(),
		metadata.WithConcurrency(cfg.Server.FetchConcurrency),
		metadata.WithLogger(logger),
	)
}

func (c *commandContext) uploadClient(logger *slog.Logger) (*upload.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return upload.NewClient(cfg.Server.URL, cfg.Server.UploadPath, cfg.RequestTimeout(), logger)
}

func (c *commandContext) lastRunStore() *lastrun.Store {
	cfg := c.configValue()
	if cfg == nil {
		return nil
	}
	return lastrun.NewStore(cfg.LastRunPath())
}

func (c *commandContext) openLibrary(ctx context.Context) (*library.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return library.Open(ctx, cfg.LibraryPath())
}

// recorder indexes results into the local library. A library that cannot
// be opened is logged and skipped; the returned close func is always safe
// to call.
func (c *commandContext) recorder(ctx context.Context, logger *slog.Logger) (reconcile.View, func()) {
	store, err := c.openLibrary(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "result library unavailable", "library_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "results from this session are not indexed locally"),
		)
		return render.Multi{}, func() {}
	}
	return library.NewRecorder(ctx, store, logger), func() { _ = store.Close() }
}

func (c *commandContext) terminal(out io.Writer, color bool) *render.Terminal {
	return render.NewTerminal(out, render.TerminalOptions{Color: color, Bar: color})
}

// notifier publishes outcomes through the configured ntfy topic. Sends
// outlive cancellation of ctx so a result that ends the command still goes
// out; the ntfy request timeout bounds them.
func (c *commandContext) notifier(ctx context.Context, logger *slog.Logger) *notifications.Notifier {
	return notifications.NewNotifier(context.WithoutCancel(ctx), notifications.NewService(c.configValue()), logger)
}

// lockedWriter serializes writes from the event loop and the command
// goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// openSession dials the configured server with view as the reconciler's
// output.
func (c *commandContext) openSession(ctx context.Context, view reconcile.View, logger *slog.Logger) (*session.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	fetcher, err := c.metadataClient(logger)
	if err != nil {
		return nil, err
	}
	uploader, err := c.uploadClient(logger)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(ctx, session.Options{
		ServerURL: cfg.Server.URL,
		Transport: transport.Options{
			Path:        cfg.Server.SocketPath,
			Namespace:   cfg.Server.Namespace,
			DialTimeout: cfg.DialTimeout(),
		},
		View:           view,
		Fetcher:        fetcher,
		Uploader:       uploader,
		LastRun:        c.lastRunStore(),
		Logger:         logger,
		RevertDelay:    cfg.FinishedRevertDelay(),
		StartedPercent: cfg.Display.StartedPercent,
	})
	if err != nil {
		return nil, wrapDialError(err, cfg.Server.URL)
	}
	return sess, nil
}

func wrapDialError(err error, server string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to server: %s refused the connection; verify the generation server is running", server)
	case errors.Is(err, api.ErrConfiguration):
		return fmt.Errorf("connect to server: %w", err)
	default:
		return fmt.Errorf("connect to server %s: %w", server, err)
	}
}

// runInBackground starts sess.Run and returns a channel with its result.
func runInBackground(ctx context.Context, sess *session.Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	return done
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
