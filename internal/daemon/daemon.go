package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/notify"
)

// Daemon is the listener: it turns events received by the IPC server into
// desktop notifications.
type Daemon struct {
	ipcServer *ipc.Server
	notifier  Notifier
	activity  *slog.Logger
}

// Notifier is the desktop notification emitter the daemon forwards events to.
type Notifier = notify.Notifier

// NewDaemon creates a new daemon. activity receives one record per handled
// connection; pass nil to disable activity logging.
func NewDaemon(ipcServer *ipc.Server, notifier Notifier, activity *slog.Logger) *Daemon {
	if activity == nil {
		activity = slog.New(slog.DiscardHandler)
	}
	return &Daemon{
		ipcServer: ipcServer,
		notifier:  notifier,
		activity:  activity,
	}
}

// Run serves connections until ctx is cancelled or the process receives an
// interrupt or termination signal.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Listening for notifications", "addr", d.ipcServer.Addr().String())
	if err := d.ipcServer.Serve(ctx, d); err != nil {
		return err
	}
	slog.Info("Listener shut down")
	return nil
}
