package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audiogen/internal/render"
	"audiogen/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a melody for later melody-mode submissions",
		Long: "Upload an audio file to the server's melody slot. The server keeps only the\n" +
			"latest upload; pass the printed path to `submit --melody-ref` or use\n" +
			"`submit --melody FILE` to upload and submit in one step.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			client, err := ctx.uploadClient(logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := ctx.colorize(out)

			result, err := client.Upload(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, upload.ErrUnsupported) {
					fmt.Fprintln(out, render.StatusLine("Melody", render.LineError, "unsupported file type "+result.MIME, color))
				} else {
					fmt.Fprintln(out, render.StatusLine("Melody", render.LineError, "upload failed", color))
				}
				return err
			}
			fmt.Fprintln(out, render.StatusLine("Melody", render.LineOK, "uploaded: "+result.Path, color))
			fmt.Fprintln(out, render.StatusLine("Type", render.LineInfo, result.MIME, color))
			fmt.Fprintln(out, render.StatusLine("Size", render.LineInfo, humanize.IBytes(uint64(result.Size)), color))
			return nil
		},
	}
}
