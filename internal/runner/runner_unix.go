//go:build unix

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/mblarsen/clin/internal/ipc"
	"golang.org/x/sys/unix"
)

// Like system(3), SIGINT and SIGQUIT are left to the child, which shares the
// terminal's process group. SIGTERM and SIGHUP target clin alone and are
// passed on.
var handledSignals = []os.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP}

func forward(sig os.Signal) bool {
	return sig == syscall.SIGTERM || sig == syscall.SIGHUP
}

func buildCommand(c Command) *exec.Cmd {
	if c.Script != "" {
		return exec.Command("/bin/sh", "-c", c.Script)
	}
	return exec.Command(c.Args[0], c.Args[1:]...)
}

func exitStatus(state *os.ProcessState) (ipc.ExitStatus, int) {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		name := unix.SignalName(sig)
		if name == "" {
			name = sig.String()
		}
		return ipc.Signaled(name), 128 + int(sig)
	}
	return ipc.Exited(state.ExitCode()), state.ExitCode()
}
