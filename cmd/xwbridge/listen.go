package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/ipc"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print the method calls a running bridge sends to the UI engine",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	res, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := res.Config

	socket, err := socketPath(cfg)
	if err != nil {
		return err
	}
	codec, err := ipc.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	err = ipc.NewClient(socket, codec).Subscribe(ctx, func(call ipc.MethodCall) error {
		return enc.Encode(call)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
