//go:build unix

package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/mblarsen/clin/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess runs clin with the arguments after "--". It is started
// as a subprocess by runClin and does nothing in a normal test run.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CLIN_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	rootCmd.SetArgs(args)
	Execute()
}

type clinResult struct {
	exitCode int
	stdout   string
	stderr   string
	elapsed  time.Duration
}

func runClin(t *testing.T, env []string, args ...string) clinResult {
	t.Helper()
	cmd := exec.Command(os.Args[0], append([]string{"-test.run=^TestHelperProcess$", "--"}, args...)...)
	cmd.Env = append(os.Environ(),
		"CLIN_WANT_HELPER_PROCESS=1",
		"CLIN_CONFIG="+filepath.Join(t.TempDir(), "config.toml"),
		"CLIN_SEND=",
		"CLIN_SEND_HOST=",
		"CLIN_SEND_PORT=",
		"CLIN_LISTEN_PORT=",
		"CLIN_ORIGIN=",
		"CLIN_LOG_LEVEL=",
	)
	cmd.Env = append(cmd.Env, env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr, "stderr: %s", stderr.String())
	}
	return clinResult{
		exitCode: cmd.ProcessState.ExitCode(),
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		elapsed:  elapsed,
	}
}

// unusedPort returns a loopback port nothing is listening on.
func unusedPort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return strconv.Itoa(port)
}

type eventRecorder struct {
	events chan ipc.Event
}

func (r *eventRecorder) HandleEvent(ctx context.Context, conn ipc.ConnInfo, e ipc.Event) {
	r.events <- e
}

func (r *eventRecorder) HandleError(ctx context.Context, conn ipc.ConnInfo, err error) {}

func startListener(t *testing.T) (*eventRecorder, string) {
	t.Helper()
	server, err := ipc.NewServer(ipc.Binding{Port: 0})
	require.NoError(t, err)

	recorder := &eventRecorder{events: make(chan ipc.Event, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx, recorder)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return recorder, strconv.Itoa(server.Addr().(*net.TCPAddr).Port)
}

func TestClientExitCodeWithoutListener(t *testing.T) {
	res := runClin(t, nil, "--send", "--port", unusedPort(t), "--", "sh", "-c", "sleep 1; exit 7")

	assert.Equal(t, 7, res.exitCode, "stderr: %s", res.stderr)
	assert.Less(t, res.elapsed, 1*time.Second+ipc.DefaultConnectTimeout+2*time.Second)
	assert.Contains(t, res.stderr, "clin: `sh -c sleep 1; exit 7`")
	assert.Contains(t, res.stderr, "Unable to deliver notification")
}

func TestClientSendsToListener(t *testing.T) {
	recorder, port := startListener(t)

	res := runClin(t, nil, "--send", "--port", port, "--origin", "ci", "--quiet", "true")
	require.Equal(t, 0, res.exitCode, "stderr: %s", res.stderr)
	assert.NotContains(t, res.stderr, "clin: `true`")

	select {
	case e := <-recorder.events:
		assert.Equal(t, "true", e.Command)
		assert.Equal(t, ipc.Exited(0), e.Status)
		assert.Equal(t, "ci", e.Origin)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not receive the event")
	}
}

func TestClientSendSettingsFromEnv(t *testing.T) {
	recorder, port := startListener(t)

	res := runClin(t, []string{"CLIN_SEND=1", "CLIN_SEND_PORT=" + port, "CLIN_ORIGIN=from-env"}, "-q", "-c", "exit 3")
	require.Equal(t, 3, res.exitCode, "stderr: %s", res.stderr)

	select {
	case e := <-recorder.events:
		assert.Equal(t, "exit 3", e.Command)
		assert.Equal(t, ipc.Exited(3), e.Status)
		assert.Equal(t, "from-env", e.Origin)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not receive the event")
	}
}

func TestClientSignalExitCode(t *testing.T) {
	res := runClin(t, nil, "--send", "--port", unusedPort(t), "-q", "-c", "kill -TERM $$")
	assert.Equal(t, 143, res.exitCode, "stderr: %s", res.stderr)
}

func TestClientSpawnFailure(t *testing.T) {
	res := runClin(t, nil, "--send", "--port", unusedPort(t), "-q", "--", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 127, res.exitCode)
	assert.Contains(t, res.stderr, "could not start")
}

func TestClientWithoutCommand(t *testing.T) {
	res := runClin(t, nil)
	assert.Equal(t, exitUsage, res.exitCode)
	assert.Contains(t, strings.ToLower(res.stdout+res.stderr), "usage")
}

func TestClientUnknownFlag(t *testing.T) {
	res := runClin(t, nil, "--no-such-flag", "true")
	assert.Equal(t, exitUsage, res.exitCode)
}

func TestClientInvalidConfig(t *testing.T) {
	res := runClin(t, []string{"CLIN_SEND_PORT=not-a-port"}, "-q", "true")
	assert.Equal(t, exitFailure, res.exitCode)
	assert.Contains(t, res.stderr, "CLIN_SEND_PORT")
}

func TestClientInvalidConnectTimeout(t *testing.T) {
	res := runClin(t, nil, "--connect-timeout", "0s", "true")
	assert.Equal(t, exitUsage, res.exitCode)
}

func TestListenBindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)

	res := runClin(t, nil, "listen", "--port", port)
	assert.Equal(t, exitFailure, res.exitCode)
	assert.Contains(t, res.stderr, port)
}

func TestListenReceivesAndLogs(t *testing.T) {
	port := unusedPort(t)
	logPath := filepath.Join(t.TempDir(), "activity.log")

	listener := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$", "--", "listen", "--port", port, "--log-file", logPath)
	listener.Env = append(os.Environ(),
		"CLIN_WANT_HELPER_PROCESS=1",
		"CLIN_CONFIG="+filepath.Join(t.TempDir(), "config.toml"),
		"CLIN_LISTEN_PORT=",
	)
	var stderr bytes.Buffer
	listener.Stderr = &stderr
	require.NoError(t, listener.Start())
	exited := make(chan error, 1)
	go func() { exited <- listener.Wait() }()
	t.Cleanup(func() {
		_ = listener.Process.Kill()
	})

	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	client := ipc.NewClient("127.0.0.1", p)
	event := ipc.Event{Command: "true", Status: ipc.Exited(0), Duration: 1500 * time.Millisecond, Origin: "e2e"}
	require.Eventually(t, func() bool {
		return client.Send(context.Background(), event).Delivered()
	}, 10*time.Second, 50*time.Millisecond, "listener never accepted the event")

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "command=true")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, listener.Process.Signal(syscall.SIGTERM))
	select {
	case err := <-exited:
		assert.NoError(t, err, "listener should exit cleanly on SIGTERM: %s", stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after SIGTERM")
	}
}
