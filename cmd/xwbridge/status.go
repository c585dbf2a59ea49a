package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/ipc"
	"github.com/1broseidon/xwbridge/internal/runtimepath"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running bridge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		status, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "surfaces:       %d\n", status.Surfaces)
		fmt.Fprintf(out, "focus:          %s\n", status.Focus)
		fmt.Fprintf(out, "subscribers:    %d\n", status.Subscribers)
		fmt.Fprintf(out, "uptime_seconds: %d\n", status.UptimeSeconds)
		for _, sel := range status.Selections {
			state := sel.Owner
			if !sel.Enabled {
				state += " (bridging disabled)"
			}
			fmt.Fprintf(out, "%-15s %s", sel.Target+":", state)
			if len(sel.MimeTypes) > 0 {
				fmt.Fprintf(out, " [%s]", strings.Join(sel.MimeTypes, ", "))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

// controlClient connects to the control socket of the bridge serving the
// configured display.
func controlClient() (*ipc.ControlClient, error) {
	res, err := loadConfig()
	if err != nil {
		return nil, err
	}
	socket, err := socketPath(res.Config)
	if err != nil {
		return nil, err
	}
	return ipc.NewControlClient(runtimepath.ControlSocketPath(socket)), nil
}
