package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/xwbridge/internal/config"
	"github.com/1broseidon/xwbridge/internal/daemon"
	"github.com/1broseidon/xwbridge/internal/eventloop"
	"github.com/1broseidon/xwbridge/internal/ipc"
	"github.com/1broseidon/xwbridge/internal/logging"
	"github.com/1broseidon/xwbridge/internal/runtimepath"
	"github.com/1broseidon/xwbridge/internal/selection"
	"github.com/1broseidon/xwbridge/internal/surface"
	"github.com/1broseidon/xwbridge/internal/x11"
	"github.com/1broseidon/xwbridge/internal/xwm"
)

// sessionID identifies the single compatibility server this process serves.
const sessionID surface.XwmID = 1

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge in the foreground",
	Args:  cobra.NoArgs,
	RunE:  runBridge,
}

func socketPath(cfg *config.Config) (string, error) {
	if cfg.Socket != "" {
		return cfg.Socket, nil
	}
	return runtimepath.SocketPathFor(cfg.ResolvedDisplay())
}

func runBridge(cmd *cobra.Command, args []string) error {
	res, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := res.Config

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "files", res.Files, "codec", cfg.Codec)

	loop := eventloop.New(logger)

	socket, err := socketPath(cfg)
	if err != nil {
		return err
	}
	codec, err := ipc.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}
	server, err := ipc.NewServer(socket, codec, cfg.QueueSize, logger)
	if err != nil {
		return fmt.Errorf("failed to create method channel: %w", err)
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	display := cfg.ResolvedDisplay()
	conn, err := x11.NewConnection(display)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connected to compatibility server", "display", display)

	// The watcher needs the state as its sink and the state needs the
	// watcher as its legacy source.
	var watcher *x11.SelectionWatcher
	seat := selection.NewSeat()
	state := xwm.New(xwm.Options{
		ID:       sessionID,
		Registry: surface.NewRegistry(nil),
		Channel:  server,
		Seat:     seat,
		LegacySource: selection.SourceFunc(func(t selection.Target, mime string, fd *os.File) error {
			return watcher.Send(t, mime, fd)
		}),
		Logger: logger,
	})
	applySelectionConfig(state, cfg)

	watcher, err = x11.NewSelectionWatcher(conn, loop, state, logger)
	if err != nil {
		return err
	}
	seat.OnChange(watcher.SeatChanged)

	wm := x11.NewWM(conn, loop, state, logger)
	wm.Ignore(watcher.Window())
	if err := wm.Start(); err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	if cfg.ReconcileInterval > 0 {
		reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval: cfg.ReconcileInterval,
			Logger:   logger,
		}, daemon.NewStateSynchronizer(loop, wm, logger), conn.TopLevelWindows)
		go reconciler.Run(ctx)
	}

	controller := daemon.NewController(loop, daemon.ControllerConfig{
		Session:     state,
		Seat:        seat,
		Subscribers: server.Subscribers,
		Logger:      logger,
	})
	control, err := ipc.NewControlServer(runtimepath.ControlSocketPath(socket), controller, logger)
	if err != nil {
		return fmt.Errorf("failed to create control socket: %w", err)
	}
	if err := control.Start(); err != nil {
		return err
	}
	defer control.Stop()

	go reloadOnHangup(ctx, loop, state, logger)
	go conn.EventLoop()

	logger.Info("bridge running", "socket", socket)
	<-ctx.Done()
	logger.Info("shutting down")
	conn.Quit()
	<-loopDone
	return nil
}

func applySelectionConfig(state *xwm.State, cfg *config.Config) {
	state.Selection().SetEnabled(selection.Clipboard, cfg.Selection.Clipboard)
	state.Selection().SetEnabled(selection.Primary, cfg.Selection.Primary)
}

// reloadOnHangup re-reads the selection settings on SIGHUP.
func reloadOnHangup(ctx context.Context, loop *eventloop.Loop, state *xwm.State, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			logger.Info("received SIGHUP, reloading config")
			res, err := loadConfig()
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			cfg := res.Config
			if err := loop.Post(func() { applySelectionConfig(state, cfg) }); err != nil {
				return
			}
		}
	}
}
