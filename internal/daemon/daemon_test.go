package daemon

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/logsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonServer(t *testing.T) {
	ipcServer, err := ipc.NewServer(ipc.Binding{Port: 0}, ipc.WithReadTimeout(time.Second))
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "listener.log")
	sink, err := logsink.Open(logPath)
	require.NoError(t, err)
	defer sink.Close()

	notifier := newMockNotifier()
	daemon := NewDaemon(ipcServer, notifier, slog.New(slog.NewTextHandler(sink, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Run(ctx) }()

	port := ipcServer.Addr().(*net.TCPAddr).Port
	client := ipc.NewClient("127.0.0.1", port)

	t.Run("completed command", func(t *testing.T) {
		d := client.Send(context.Background(), ipc.Event{Command: "true", Status: ipc.Exited(0), Duration: 2 * time.Millisecond})
		require.True(t, d.Delivered(), "delivery failed: %v", d.Err)

		waitNotified(t, notifier, 1)
		all := notifier.All()
		assert.Equal(t, "Complete ✓", all[0].Title)
		assert.True(t, strings.HasPrefix(all[0].Message, "true\n"))
	})

	t.Run("ping and garbage do not notify", func(t *testing.T) {
		for _, payload := range []string{"ping", "garbage\n"} {
			conn, err := net.Dial("tcp", ipcServer.Addr().String())
			require.NoError(t, err)
			_, err = conn.Write([]byte(payload))
			require.NoError(t, err)
			require.NoError(t, conn.Close())
		}

		d := client.Send(context.Background(), ipc.Event{Command: "false", Status: ipc.Exited(1)})
		require.True(t, d.Delivered())

		waitNotified(t, notifier, 1)
		assert.Equal(t, 2, notifier.NotifyCount())
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	t.Run("activity log", func(t *testing.T) {
		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")

		var events, discarded int
		for _, line := range lines {
			switch {
			case strings.Contains(line, "level=INFO"):
				events++
			case strings.Contains(line, "discarded connection"):
				discarded++
			}
		}
		assert.Equal(t, 2, events, "one line per event")
		assert.Equal(t, 1, discarded, "garbage is logged, ping is not")
	})
}

func TestDaemonEndToEndCommandTrue(t *testing.T) {
	ipcServer, err := ipc.NewServer(ipc.Binding{Port: ipc.DefaultPort})
	if err != nil {
		t.Skipf("default port unavailable: %v", err)
	}

	notifier := newMockNotifier()
	daemon := NewDaemon(ipcServer, notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go daemon.Run(ctx)

	d := ipc.NewClient("127.0.0.1", ipc.DefaultPort).Send(context.Background(), ipc.Event{Command: "true", Status: ipc.Exited(0)})
	require.True(t, d.Delivered(), "delivery failed: %v", d.Err)

	waitNotified(t, notifier, 1)
	assert.Equal(t, "Complete ✓", notifier.All()[0].Title)
	assert.Equal(t, "true\ntook 0s", notifier.All()[0].Message)
}

func waitNotified(t *testing.T, m *mockNotifier, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-m.notified:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d notifications", i, n)
		}
	}
}
