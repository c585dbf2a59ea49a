package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/ipc"
	"github.com/1broseidon/xwbridge/internal/selection"
)

var (
	usePrimary     bool
	selectionTypes []string
)

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Read or replace the native selection of a running bridge",
}

var selectionGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Write the current selection to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		var mimeType string
		if len(selectionTypes) > 0 {
			mimeType = selectionTypes[0]
		}
		data, err := client.GetSelection(cmd.Context(), selectionTarget().String(), mimeType)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data.Data)
		return err
	},
}

var selectionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the selection with stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), ipc.MaxSelectionData+1))
		if err != nil {
			return err
		}
		if len(data) > ipc.MaxSelectionData {
			return fmt.Errorf("selection content exceeds %d bytes", ipc.MaxSelectionData)
		}
		client, err := controlClient()
		if err != nil {
			return err
		}
		return client.SetSelection(cmd.Context(), selectionTarget().String(), selectionTypes, data)
	},
}

var selectionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		return client.ClearSelection(cmd.Context(), selectionTarget().String())
	},
}

func selectionTarget() selection.Target {
	if usePrimary {
		return selection.Primary
	}
	return selection.Clipboard
}

func init() {
	selectionCmd.PersistentFlags().BoolVar(&usePrimary, "primary", false, "use the primary selection instead of the clipboard")
	selectionGetCmd.Flags().StringSliceVarP(&selectionTypes, "type", "t", nil, "mime type to request (default: the owner's first offer)")
	selectionSetCmd.Flags().StringSliceVarP(&selectionTypes, "type", "t", nil, "mime types to offer (default: plain text)")

	selectionCmd.AddCommand(selectionGetCmd)
	selectionCmd.AddCommand(selectionSetCmd)
	selectionCmd.AddCommand(selectionClearCmd)
}
