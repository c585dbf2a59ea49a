package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var clearFocus bool

var focusCmd = &cobra.Command{
	Use:   "focus [native-surface]",
	Short: "Tell a running bridge which native surface holds keyboard focus",
	Long: `Report keyboard focus changes made by the compositor. Selection access
for X11 clients is only granted while one of their windows is focused, so
the compositor calls this when a native surface is activated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearFocus == (len(args) == 1) {
			return fmt.Errorf("pass either a native surface handle or --clear")
		}
		client, err := controlClient()
		if err != nil {
			return err
		}
		if clearFocus {
			return client.ClearFocus(cmd.Context())
		}
		handle, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid surface handle %q: %w", args[0], err)
		}
		return client.FocusNative(cmd.Context(), handle)
	},
}

func init() {
	focusCmd.Flags().BoolVar(&clearFocus, "clear", false, "report that nothing holds keyboard focus")
}
