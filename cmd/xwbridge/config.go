package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/config"
)

var printDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect xwbridge configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadConfig()
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s\n", f)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "config: ok")
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if !printDefaults {
			res, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configPrintCmd.Flags().BoolVar(&printDefaults, "defaults", false, "print built-in defaults (no files)")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPrintCmd)
}
