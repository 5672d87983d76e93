package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"audiogen/internal/notifications"
	"audiogen/internal/render"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := ctx.colorize(out)
			svc := notifications.NewService(cfg)
			if !notifications.Enabled(svc) {
				fmt.Fprintln(out, render.StatusLine("Notify", render.LineWarn, "notifications.ntfy_topic is not set", color))
				return errors.New("notifications are disabled")
			}
			if err := svc.TestNotification(cmd.Context()); err != nil {
				fmt.Fprintln(out, render.StatusLine("Notify", render.LineError, err.Error(), color))
				return fmt.Errorf("test notification: %w", err)
			}
			fmt.Fprintln(out, render.StatusLine("Notify", render.LineOK, "sent to "+cfg.Notifications.NtfyTopic, color))
			return nil
		},
	}
}
