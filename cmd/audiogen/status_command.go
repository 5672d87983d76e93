package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audiogen/internal/config"
	"audiogen/internal/preflight"
	"audiogen/internal/render"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server reachability, local paths and the last submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := ctx.colorize(out)

			writeSection(out, "Server", colorize)
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := render.LineOK
				switch {
				case r.Passed:
				case r.Optional:
					kind = render.LineWarn
				default:
					kind = render.LineError
				}
				fmt.Fprintln(out, render.StatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			writeSection(out, "Defaults", colorize)
			writeDefaults(out, cfg, colorize)

			fmt.Fprintln(out)
			writeSection(out, "Last Run", colorize)
			rec, ok, err := ctx.lastRunStore().Load(cmd.Context())
			switch {
			case err != nil:
				fmt.Fprintln(out, render.StatusLine("Last run", render.LineWarn, err.Error(), colorize))
			case !ok:
				fmt.Fprintln(out, render.StatusLine("Last run", render.LineInfo, "none yet", colorize))
			default:
				fmt.Fprintln(out, render.StatusLine("Prompt", render.LineInfo, rec.Prompt, colorize))
				fmt.Fprintln(out, render.StatusLine("Model", render.LineInfo, render.ModelLabel(rec.Model), colorize))
				if rec.MelodyRef != "" {
					fmt.Fprintln(out, render.StatusLine("Melody", render.LineInfo, rec.MelodyRef, colorize))
				}
				if !rec.SavedAt.IsZero() {
					fmt.Fprintln(out, render.StatusLine("Submitted", render.LineInfo, render.RelativeTime(rec.SavedAt, time.Now()), colorize))
				}
				fmt.Fprintln(out, render.ParamsTable(rec.Parameters))
			}

			if preflight.Failed(results) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
}

func writeSection(out io.Writer, title string, colorize bool) {
	for _, line := range render.SectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func writeDefaults(out io.Writer, cfg *config.Config, colorize bool) {
	gen := cfg.Generation
	fmt.Fprintln(out, render.StatusLine("Model", render.LineInfo, render.ModelLabel(gen.Model), colorize))
	fmt.Fprintln(out, render.StatusLine("Sliders", render.LineInfo,
		fmt.Sprintf("top_k=%d top_p=%g temperature=%g cfg_coef=%g duration=%ds", gen.TopK, gen.TopP, gen.Temperature, gen.CFGCoef, gen.Duration),
		colorize))
	fmt.Fprintln(out, render.StatusLine("Advanced panel", render.LineInfo, yesNo(cfg.Advanced.Enabled), colorize))
	notify := "disabled"
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		notify = topic
	}
	fmt.Fprintln(out, render.StatusLine("Notifications", render.LineInfo, notify, colorize))
	fmt.Fprintln(out, render.StatusLine("Log file", render.LineInfo, strings.TrimSpace(cfg.LogPath()), colorize))
	fmt.Fprintln(out, render.StatusLine("Library", render.LineInfo, cfg.LibraryPath(), colorize))
}
