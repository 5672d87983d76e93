package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"audiogen/internal/render"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show the live queue, progress and results until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			notifier := ctx.notifier(cmd.Context(), logger)
			defer notifier.Wait()
			recorder, closeLibrary := ctx.recorder(cmd.Context(), logger)
			defer closeLibrary()
			board := render.NewBoard()
			view := render.Multi{ctx.terminal(out, ctx.colorize(out)), notifier, recorder, board}
			sess, err := ctx.openSession(cmd.Context(), view, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "connected to %s (press Ctrl+C to stop)\n", ctx.configValue().Server.URL)
			runErr := sess.Run(cmd.Context())
			writeWatchSummary(out, board.Snapshot())
			if runErr != nil {
				return fmt.Errorf("watch: %w", runErr)
			}
			return nil
		},
	}
}

// writeWatchSummary prints what was left on screen when the watch ended.
func writeWatchSummary(out io.Writer, snap render.Snapshot) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "last status: %s\n", snap.Status.Text)
	if len(snap.Queue) > 0 {
		fmt.Fprintf(out, "%d job(s) still queued:\n", len(snap.Queue))
		fmt.Fprintln(out, render.QueueTable(snap.Queue))
	}
	fmt.Fprintf(out, "%d result(s) on the server\n", len(snap.Results))
}
