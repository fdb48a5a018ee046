//go:build !linux && !darwin

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	listenInstallCmd.RunE = unsupportedService
	listenUninstallCmd.RunE = unsupportedService
}

func unsupportedService(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("installing the listener as a service is not supported on %s; run \"clin listen\" from your session instead", runtime.GOOS)
}
