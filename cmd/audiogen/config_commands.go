package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"audiogen/internal/config"
	"audiogen/internal/notifications"
	"audiogen/internal/render"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, check and print the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

// loadConfigFile loads the --config file directly so errors are reported
// instead of aborting the root command's pre-run.
func loadConfigFile(ctx *commandContext) (*config.Config, string, bool, error) {
	var path string
	if ctx.configFlag != nil {
		path = strings.TrimSpace(*ctx.configFlag)
	}
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, "", false, fmt.Errorf("load config: %w", err)
	}
	return cfg, resolved, exists, nil
}

type configInitOptions struct {
	path      string
	serverURL string
	overwrite bool
}

func newConfigInitCommand() *cobra.Command {
	var opts configInitOptions
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(opts.path)
			if err != nil {
				return err
			}
			if !opts.overwrite {
				switch _, err := os.Stat(target); {
				case err == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target, opts.serverURL); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if strings.TrimSpace(opts.serverURL) == "" {
				fmt.Fprintln(out, "Set [server] url (or AUDIOGEN_SERVER_URL) to your generation server, or rerun with --server.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Where to write the file (default ~/.config/audiogen/config.toml)")
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "Generation server URL to write into [server] url")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func configTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Check the configuration and summarise what it points at",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := loadConfigFile(ctx)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			source := resolved
			if !exists {
				source += " (not found, using defaults)"
			}
			ntfy := "disabled"
			if notifications.Enabled(notifications.NewService(cfg)) {
				ntfy = cfg.Notifications.NtfyTopic
			}
			advanced := "closed"
			if cfg.Advanced.Enabled {
				advanced = "open"
			}
			rows := [][]string{
				{"Config", source},
				{"Server", cfg.Server.URL},
				{"Model", cfg.Generation.Model},
				{"Duration", strconv.Itoa(cfg.Generation.Duration) + "s"},
				{"Advanced panel", advanced},
				{"Downloads", cfg.Paths.DownloadDir},
				{"Log file", cfg.LogPath()},
				{"Notifications", ntfy},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.RenderTable([]string{"Setting", "Value"}, rows, nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration as TOML",
		Long:        "Print the configuration after defaults, environment overrides and path expansion are applied.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := loadConfigFile(ctx)
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# loaded from %s\n", resolved)
			} else {
				fmt.Fprintf(out, "# defaults (%s does not exist)\n", resolved)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
