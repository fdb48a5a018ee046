package daemon

import (
	"context"
	"log/slog"

	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/notify"
)

// HandleEvent shows a notification for e and records it in the activity log.
func (d *Daemon) HandleEvent(ctx context.Context, conn ipc.ConnInfo, e ipc.Event) {
	title, message := notify.Format(e)

	d.activity.LogAttrs(ctx, slog.LevelInfo, title,
		slog.String("conn", conn.ID),
		slog.String("remote", remoteAddr(conn)),
		slog.String("command", e.Command),
		slog.String("status", e.Status.String()),
		slog.Duration("duration", e.Duration),
		slog.String("origin", e.Origin),
	)
	slog.Info("Received notification", "conn", conn.ID, "title", title, "command", e.Command)

	if err := d.notifier.Notify(title, message); err != nil {
		slog.Error("Failed to send notification", "conn", conn.ID, "err", err)
	}
}

// HandleError records a connection that did not yield an event.
func (d *Daemon) HandleError(ctx context.Context, conn ipc.ConnInfo, err error) {
	if ipc.IsPing(err) {
		slog.Debug("Ignoring liveness probe", "conn", conn.ID, "remote", remoteAddr(conn))
		return
	}
	d.activity.LogAttrs(ctx, slog.LevelWarn, "discarded connection",
		slog.String("conn", conn.ID),
		slog.String("remote", remoteAddr(conn)),
		slog.String("err", err.Error()),
	)
	slog.Debug("Discarded connection", "conn", conn.ID, "remote", remoteAddr(conn), "err", err)
}

func remoteAddr(conn ipc.ConnInfo) string {
	if conn.RemoteAddr == nil {
		return ""
	}
	return conn.RemoteAddr.String()
}
