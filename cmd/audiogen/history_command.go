package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"audiogen/internal/api"
	"audiogen/internal/config"
	"audiogen/internal/library"
	"audiogen/internal/logging"
	"audiogen/internal/metadata"
	"audiogen/internal/reconcile"
	"audiogen/internal/render"
	"audiogen/internal/textutil"
)

const defaultDownloadMarker = "@config"

// historyCollector waits for the history the server sends on connect.
type historyCollector struct {
	once  sync.Once
	done  chan struct{}
	items []api.CompletedItem
}

func newHistoryCollector() *historyCollector {
	return &historyCollector{done: make(chan struct{})}
}

func (h *historyCollector) SetQueue([]reconcile.Entry)                   {}
func (h *historyCollector) SetStatus(reconcile.Status)                   {}
func (h *historyCollector) SetUpload(reconcile.UploadState)              {}
func (h *historyCollector) AddResult(api.CompletedItem, reconcile.Order) {}

func (h *historyCollector) ReplaceResults(items []api.CompletedItem) {
	h.once.Do(func() {
		h.items = items
		close(h.done)
	})
}

type historyOptions struct {
	match    string
	limit    int
	model    string
	local    bool
	download string
	timeout  time.Duration
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed generations, newest first",
		Long: "List the server's completed generations, newest first. Every listing is also\n" +
			"indexed locally so --local can show past results without a server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.match, "match", "", "Only show results whose prompt resembles this text")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Show at most this many results (0 for all)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Only show results from this model")
	cmd.Flags().BoolVar(&opts.local, "local", false, "List the local index instead of connecting to the server")
	cmd.Flags().StringVar(&opts.download, "download", "", "Save the listed audio files into this directory (without a value, the configured download_dir)")
	cmd.Flags().Lookup("download").NoOptDefVal = defaultDownloadMarker
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "How long to wait for the server's history (default dial + request timeout)")
	return cmd
}

func runHistory(cmd *cobra.Command, ctx *commandContext, opts historyOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return err
	}

	var lib *library.Store
	var items []api.CompletedItem
	if opts.local {
		lib, err = ctx.openLibrary(cmd.Context())
		if err != nil {
			return fmt.Errorf("open result library: %w", err)
		}
		defer lib.Close()
		entries, err := lib.List(cmd.Context(), library.Query{Model: opts.model})
		if err != nil {
			return err
		}
		board := render.NewBoard()
		for _, entry := range entries {
			board.AddResult(entry.Item, reconcile.OrderArrival)
		}
		items = board.Snapshot().Results
	} else {
		items, err = fetchHistory(cmd, ctx, cfg, logger, opts.timeout)
		if err != nil {
			return err
		}
		items = filterModel(items, opts.model)
	}

	items = filterHistory(items, opts.match, opts.limit)
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No results")
		return nil
	}
	fmt.Fprintln(out, render.ResultsTable(items, time.Now()))

	if opts.download == "" {
		return nil
	}
	dir, err := resolveDownloadDir(cfg, opts.download)
	if err != nil {
		return err
	}
	fetcher, err := ctx.metadataClient(logger)
	if err != nil {
		return err
	}
	if lib == nil {
		if lib, err = ctx.openLibrary(cmd.Context()); err != nil {
			logger.Warn("result library unavailable; downloads are not indexed", logging.Error(err))
		} else {
			defer lib.Close()
		}
	}
	saved := func(item api.CompletedItem, dest string) {
		if lib == nil {
			return
		}
		if err := lib.MarkDownloaded(cmd.Context(), item.AudioRef, dest); err != nil {
			logger.Debug("download not indexed", logging.String("audio_ref", item.AudioRef), logging.Error(err))
		}
	}
	return downloadResults(cmd.Context(), fetcher, items, dir, out, ctx.colorize(out), saved)
}

// fetchHistory connects, waits for the history the server sends on connect
// and indexes it in the local library.
func fetchHistory(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, logger *slog.Logger, timeout time.Duration) ([]api.CompletedItem, error) {
	collector := newHistoryCollector()
	recorder, closeLibrary := ctx.recorder(cmd.Context(), logger)
	defer closeLibrary()

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sess, err := ctx.openSession(runCtx, render.Multi{recorder, collector}, logger)
	if err != nil {
		return nil, err
	}
	runErr := runInBackground(runCtx, sess)

	if timeout <= 0 {
		timeout = cfg.DialTimeout() + cfg.RequestTimeout()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-collector.done:
		cancel()
		<-runErr
		return collector.items, nil
	case err := <-runErr:
		if err == nil {
			err = cmd.Context().Err()
		}
		return nil, fmt.Errorf("connection ended before history arrived: %w", err)
	case <-timer.C:
		cancel()
		<-runErr
		return nil, fmt.Errorf("server sent no history within %s", timeout)
	}
}

func filterModel(items []api.CompletedItem, model string) []api.CompletedItem {
	model = strings.TrimSpace(model)
	if model == "" {
		return items
	}
	filtered := make([]api.CompletedItem, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Model, model) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func filterHistory(items []api.CompletedItem, match string, limit int) []api.CompletedItem {
	if query := strings.TrimSpace(match); query != "" {
		prompts := make([]string, len(items))
		for i, item := range items {
			prompts[i] = item.Prompt
		}
		ranked := textutil.Rank(query, prompts, 0.2)
		filtered := make([]api.CompletedItem, 0, len(ranked))
		for _, r := range ranked {
			filtered = append(filtered, items[r.Index])
		}
		items = filtered
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func resolveDownloadDir(cfg *config.Config, value string) (string, error) {
	if value == defaultDownloadMarker {
		value = cfg.Paths.DownloadDir
	}
	dir, err := config.ExpandPath(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("resolve download directory: %w", err)
	}
	if dir == "" {
		return "", errors.New("download directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory %q: %w", dir, err)
	}
	return dir, nil
}

func downloadResults(ctx context.Context, fetcher *metadata.Client, items []api.CompletedItem, dir string, out io.Writer, color bool, saved func(api.CompletedItem, string)) error {
	var bar *progressbar.ProgressBar
	if color {
		bar = progressbar.NewOptions(len(items),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var total int64
	var failed int
	for _, item := range items {
		ext := path.Ext(item.AudioRef)
		if ext == "" {
			ext = ".wav"
		}
		dest := textutil.UniquePath(dir, textutil.SafeFileName(item.Prompt, 0), ext, fileExists)
		written, err := fetcher.Download(ctx, item.AudioRef, dest)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintf(out, "failed: %s (%v)\n", item.AudioRef, err)
			continue
		}
		total += written
		saved(item, dest)
		if bar == nil {
			fmt.Fprintf(out, "saved: %s\n", dest)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Fprintf(out, "Downloaded %d of %d files (%s) to %s\n", len(items)-failed, len(items), humanize.IBytes(uint64(total)), dir)
	if failed > 0 {
		return fmt.Errorf("%d downloads failed", failed)
	}
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
