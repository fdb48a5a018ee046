//go:build windows

package runner

import (
	"os"
	"os/exec"

	"github.com/mblarsen/clin/internal/ipc"
)

var handledSignals = []os.Signal{os.Interrupt}

func forward(os.Signal) bool {
	return false
}

func buildCommand(c Command) *exec.Cmd {
	if c.Script != "" {
		return exec.Command("cmd", "/C", c.Script)
	}
	return exec.Command(c.Args[0], c.Args[1:]...)
}

func exitStatus(state *os.ProcessState) (ipc.ExitStatus, int) {
	return ipc.Exited(state.ExitCode()), state.ExitCode()
}
