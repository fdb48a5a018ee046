//go:build linux

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mblarsen/clin/internal/fileutil"
	"github.com/spf13/cobra"
)

const systemdUnitName = serviceName + ".service"

func init() {
	listenInstallCmd.RunE = runInstallListener
	listenUninstallCmd.RunE = runUninstallListener
}

func systemdUnitPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "systemd", "user", systemdUnitName), nil
}

func runInstallListener(cmd *cobra.Command, args []string) error {
	execArgs, err := serviceArgs(cmd)
	if err != nil {
		return err
	}

	unit := systemdUnit(execArgs)
	if print, _ := cmd.Flags().GetBool("print"); print {
		fmt.Fprint(cmd.OutOrStdout(), unit)
		fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: Service configuration printed but not installed.")
		return nil
	}

	unitPath, err := systemdUnitPath()
	if err != nil {
		return err
	}
	if _, err := fileutil.AtomicWriteFile(unitPath, []byte(unit), 0644); err != nil {
		return err
	}

	if out, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl daemon-reload failed: %w: %s", err, out)
	}
	if out, err := exec.Command("systemctl", "--user", "enable", "--now", systemdUnitName).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to enable %s: %w: %s", systemdUnitName, err, out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully installed the clin listener. Unit file created at: %s\n", unitPath)
	return nil
}

func runUninstallListener(cmd *cobra.Command, args []string) error {
	unitPath, err := systemdUnitPath()
	if err != nil {
		return err
	}

	// The unit may already be stopped or disabled.
	_ = exec.Command("systemctl", "--user", "disable", "--now", systemdUnitName).Run()

	if err := os.Remove(unitPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "The clin listener service is not installed.")
			return nil
		}
		return err
	}
	_ = exec.Command("systemctl", "--user", "daemon-reload").Run()

	fmt.Fprintln(cmd.OutOrStdout(), "Successfully uninstalled the clin listener service.")
	return nil
}
