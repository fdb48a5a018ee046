//go:build darwin

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mblarsen/clin/internal/fileutil"
	"github.com/spf13/cobra"
)

const launchAgentsDir = "Library/LaunchAgents"

func init() {
	listenInstallCmd.RunE = runInstallListener
	listenUninstallCmd.RunE = runUninstallListener
}

func plistPath(homeDir string) string {
	return filepath.Join(homeDir, launchAgentsDir, "com.user."+serviceName+".plist")
}

func runInstallListener(cmd *cobra.Command, args []string) error {
	execArgs, err := serviceArgs(cmd)
	if err != nil {
		return err
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	plist := launchdPlist(execArgs, homeDir)
	if print, _ := cmd.Flags().GetBool("print"); print {
		fmt.Fprint(cmd.OutOrStdout(), plist)
		fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: Service configuration printed but not installed.")
		return nil
	}

	path := plistPath(homeDir)
	created, err := fileutil.AtomicWriteFile(path, []byte(plist), 0644)
	if err != nil {
		return err
	}
	if !created {
		// Reinstalling: launchd keeps the old job until it is unloaded.
		_ = exec.Command("launchctl", "unload", path).Run()
	}

	if out, err := exec.Command("launchctl", "load", path).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to load launchd agent: %w: %s", err, out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully installed the clin listener. Agent created at: %s\n", path)
	return nil
}

func runUninstallListener(cmd *cobra.Command, args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	path := plistPath(homeDir)

	_ = exec.Command("launchctl", "unload", path).Run()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "The clin listener service is not installed.")
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Successfully uninstalled the clin listener service.")
	return nil
}
