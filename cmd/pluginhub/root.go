package main

import (
	"github.com/spf13/cobra"

	"github.com/leeforge/pluginhub/config"
)

type rootOptions struct {
	configPath string
	mode       string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pluginhub [sub-command]",
		Short: "Plugin lifecycle and release manager",
		Long: `pluginhub keeps a registry of plugins, mounts the enabled ones into its
  HTTP server and records every lifecycle change as versioned history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"directory holding config.yaml (defaults to $CONFIG_PATH, then ./config)")
	cmd.PersistentFlags().StringVar(&opts.mode, "mode", "",
		"run mode: development, production or test (defaults to $"+config.ModeKey+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// load reads the configuration, applying the persistent flags over the
// environment defaults.
func (o *rootOptions) load() (*config.AppConfig, *config.Config, error) {
	opts := config.DefaultOptions()
	if o.configPath != "" {
		opts.BasePath = o.configPath
	}
	if o.mode != "" {
		opts.Mode = config.ParseMode(o.mode)
	}
	return config.Load(opts)
}
