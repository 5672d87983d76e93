package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audiogen/internal/render"
	"audiogen/internal/session"
	"audiogen/internal/submission"
)

type submitOptions struct {
	mode        string
	prompt      string
	model       string
	sets        []string
	melody      string
	melodyRef   string
	advanced    bool
	recommended bool
	repeat      bool
	wait        bool
	timeout     time.Duration
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit [prompt]",
		Short: "Submit a generation request",
		Long: "Submit a generation request using the configured defaults.\n\n" +
			"Values can be overridden with --set name=value; run `audiogen params` to list them.\n" +
			"--repeat starts from the last submitted settings instead of the defaults.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.prompt != "" {
					return errors.New("give the prompt either as an argument or with --prompt, not both")
				}
				opts.prompt = args[0]
			}
			return runSubmit(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "Generation mode: text or melody (default text, or melody when --melody is set)")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Text prompt")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name for text mode (default from config)")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Override a parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.melody, "melody", "", "Upload this audio file and generate in melody mode")
	cmd.Flags().StringVar(&opts.melodyRef, "melody-ref", "", "Server path of a melody uploaded earlier with audiogen upload")
	cmd.Flags().BoolVar(&opts.advanced, "advanced", false, "Send the advanced parameters")
	cmd.Flags().BoolVar(&opts.recommended, "recommended", false, "Reset values to the recommended settings before applying --set")
	cmd.Flags().BoolVar(&opts.repeat, "repeat", false, "Start from the last submitted settings")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Stay connected until the result is ready")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Minute, "Maximum time to wait with --wait")
	return cmd
}

func runSubmit(cmd *cobra.Command, ctx *commandContext, opts submitOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	form, err := buildForm(cmd.Context(), ctx, opts)
	if err != nil {
		return err
	}
	if opts.melody == "" && form.Mode == submission.ModeMelody && form.MelodyRef == "" {
		return fmt.Errorf("melody mode needs a melody: %w", submission.ErrMelodyNotUploaded)
	}

	logger, err := ctx.logger(cmd)
	if err != nil {
		return err
	}
	color := ctx.colorize(cmd.OutOrStdout())
	out := &lockedWriter{w: cmd.OutOrStdout()}
	watcher := session.NewJobWatcher(form.Prompt)
	var view render.Multi
	if opts.wait {
		notifier := ctx.notifier(cmd.Context(), logger)
		defer notifier.Wait()
		recorder, closeLibrary := ctx.recorder(cmd.Context(), logger)
		defer closeLibrary()
		view = append(view, ctx.terminal(out, color), notifier, recorder)
	}
	view = append(view, watcher)

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sess, err := ctx.openSession(runCtx, view, logger)
	if err != nil {
		return err
	}
	runErr := runInBackground(runCtx, sess)
	stop := func() error {
		cancel()
		return <-runErr
	}

	if opts.melody != "" {
		result, err := sess.UploadMelody(runCtx, opts.melody)
		if err != nil {
			_ = stop()
			return fmt.Errorf("upload melody: %w", err)
		}
		form.Mode = submission.ModeMelody
		form.MelodyRef = result.Path
		fmt.Fprintf(out, "melody uploaded: %s\n", result.Path)
	}

	req, err := sess.Submit(runCtx, form)
	if err != nil {
		_ = stop()
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Fprintf(out, "submitted: %s (model %s)\n", req.Prompt, render.ModelLabel(req.Model))
	fmt.Fprintln(out, render.ParamsTable(req.Values))

	if !opts.wait {
		return stop()
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.Server.RequestTimeout) * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-watcher.Done():
		_ = stop()
		if _, failure, ok := watcher.Result(); !ok {
			return fmt.Errorf("generation failed: %s", strings.TrimPrefix(failure, "error: "))
		}
		return nil
	case err := <-runErr:
		if err == nil {
			err = cmd.Context().Err()
		}
		return fmt.Errorf("connection ended before the result arrived: %w", err)
	case <-timer.C:
		_ = stop()
		return fmt.Errorf("no result after %s; the job may still finish, check `audiogen history`", timeout)
	}
}

// buildForm layers the config defaults, the last run, the recommended
// reset and explicit flags, in that order.
func buildForm(ctx context.Context, cc *commandContext, opts submitOptions) (submission.Form, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return submission.Form{}, err
	}
	form := submission.FormFromConfig(cfg)

	if opts.repeat {
		store := cc.lastRunStore()
		rec, ok, err := store.Load(ctx)
		if err != nil {
			return submission.Form{}, err
		}
		if !ok {
			return submission.Form{}, fmt.Errorf("no previous run saved at %s", store.Path())
		}
		if err := form.FromParams(rec.Parameters); err != nil {
			return submission.Form{}, fmt.Errorf("last run parameters: %w", err)
		}
		form.Prompt = rec.Prompt
		if rec.MelodyRef != "" {
			form.Mode = submission.ModeMelody
			form.MelodyRef = rec.MelodyRef
		} else {
			form.Model = rec.Model
		}
	}

	if opts.recommended {
		form = form.WithRecommended()
	}
	if opts.mode != "" {
		mode, err := submission.ParseMode(opts.mode)
		if err != nil {
			return submission.Form{}, err
		}
		form.Mode = mode
	}
	if opts.prompt != "" {
		form.Prompt = opts.prompt
	}
	if opts.model != "" {
		form.Model = opts.model
	}
	if ref := strings.TrimSpace(opts.melodyRef); ref != "" {
		form.Mode = submission.ModeMelody
		form.MelodyRef = ref
	}
	if opts.advanced {
		form.AdvancedOpen = true
	}
	for _, assignment := range opts.sets {
		name, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return submission.Form{}, fmt.Errorf("--set %q: expected name=value", assignment)
		}
		if err := form.Set(strings.TrimSpace(name), value); err != nil {
			return submission.Form{}, fmt.Errorf("--set %s: %w", strings.TrimSpace(name), err)
		}
	}
	return form, nil
}
