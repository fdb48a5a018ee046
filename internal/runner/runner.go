package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/mblarsen/clin/internal/ipc"
)

// Exit codes used when the command could not be started, following the
// shell's conventions.
const (
	ExitNotFound      = 127
	ExitCannotExecute = 126
)

// ErrEmptyCommand is returned when there is nothing to run.
var ErrEmptyCommand = errors.New("no command given")

// Command is what the runner executes: either an argument vector run
// directly, or a script run through the system shell. Script wins when both
// are set.
type Command struct {
	Args   []string
	Script string
}

// Text returns the command line as it is reported in notifications.
func (c Command) Text() string {
	if c.Script != "" {
		return c.Script
	}
	return strings.Join(c.Args, " ")
}

func (c Command) validate() error {
	if c.Script == "" && (len(c.Args) == 0 || c.Args[0] == "") {
		return ErrEmptyCommand
	}
	return nil
}

// SpawnError is returned when the command could not be started. No event is
// produced in that case.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not start `%s`: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitCode is the process exit code clin should use for this failure.
func (e *SpawnError) ExitCode() int {
	if errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist) {
		return ExitNotFound
	}
	return ExitCannotExecute
}

// DeliverFunc hands a finished event to whoever should be told about it.
type DeliverFunc func(ctx context.Context, e ipc.Event) ipc.Delivery

// Result is the outcome of a command run.
type Result struct {
	Event ipc.Event
	// ExitCode mirrors the child: its exit code, or 128+N when signal N killed it.
	ExitCode int
	// Delivery is informational. It never influences ExitCode.
	Delivery ipc.Delivery
}

// Runner runs commands to completion and reports each one exactly once.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Origin string
	// Deliver is called once per completed command. A nil Deliver skips delivery.
	Deliver DeliverFunc
}

// New returns a Runner attached to the current process's standard streams.
func New(origin string, deliver DeliverFunc) *Runner {
	return &Runner{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Origin:  origin,
		Deliver: deliver,
	}
}

// Run starts c, waits for it and delivers the resulting event. The only
// error it returns for a command that ran is a failure to wait on it; a
// command that could not start yields a *SpawnError.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{}, err
	}

	cmd := buildCommand(c)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	// Keep clin alive while the child decides what to do with the signal.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, handledSignals...)
	defer signal.Stop(sigs)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, &SpawnError{Command: c.Text(), Err: err}
	}
	slog.Debug("Started command", "pid", cmd.Process.Pid, "command", c.Text())

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				if !forward(sig) {
					continue
				}
				slog.Debug("Forwarding signal to command", "signal", sig)
				if err := cmd.Process.Signal(sig); err != nil {
					slog.Debug("Failed to forward signal", "signal", sig, "err", err)
				}
			case <-done:
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	elapsed := time.Since(start).Truncate(time.Millisecond)
	// With the child gone, an interrupt may cut delivery short.
	signal.Stop(sigs)
	close(done)

	if cmd.ProcessState == nil {
		return Result{}, fmt.Errorf("failed to wait for command: %w", waitErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// The child ran; only copying its output failed.
		slog.Warn("Command I/O failed", "err", waitErr)
	}

	status, code := exitStatus(cmd.ProcessState)
	res := Result{
		Event: ipc.Event{
			// Arguments are bytes, the wire carries UTF-8 text.
			Command:  strings.ToValidUTF8(c.Text(), "\uFFFD"),
			Status:   status,
			Duration: elapsed,
			Origin:   r.Origin,
		},
		ExitCode: code,
	}
	slog.Debug("Command finished", "status", status.String(), "duration", elapsed)

	if r.Deliver != nil {
		res.Delivery = r.Deliver(ctx, res.Event)
		if !res.Delivery.Delivered() {
			slog.Warn("Unable to deliver notification", "addr", res.Delivery.Addr, "err", res.Delivery.Err)
		}
	}
	return res, nil
}
