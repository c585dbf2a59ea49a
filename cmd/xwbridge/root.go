package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/config"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath string

	rootCmd = &cobra.Command{
		Use:   "xwbridge",
		Short: "xwbridge - X11 window and selection bridge",
		Long: `xwbridge manages the top-level windows of an X11 compatibility server,
reports their lifecycle to a UI engine over a unix socket and mirrors the
clipboard and primary selections between X11 clients and the native seat.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/xwbridge/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(selectionCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.LoadResult, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	return config.LoadFromPath(path)
}
