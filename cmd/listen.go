package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mblarsen/clin/internal/config"
	"github.com/mblarsen/clin/internal/daemon"
	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/logsink"
	"github.com/mblarsen/clin/internal/notify"
	"github.com/mblarsen/clin/internal/xdgpath"
	"github.com/spf13/cobra"
)

const serviceName = "clin-listener"

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive notifications from remote clin clients.",
	Long: `Listen for completion events sent with "clin --send" and show them as desktop
notifications. By default only connections from this machine are accepted,
which is what a forwarded SSH port needs; --public binds all interfaces.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var listenInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the listener as a user service.",
	Long:  `Install and start the listener as a systemd user unit on Linux or a launchd agent on macOS.`,
	Args:  cobra.NoArgs,
}

var listenUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the listener user service.",
	Args:  cobra.NoArgs,
}

func init() {
	f := listenCmd.Flags()
	f.IntP("port", "p", 0, fmt.Sprintf("Port to listen on. (default %d)", ipc.DefaultPort))
	f.Bool("public", false, "Accept connections on all interfaces, not just loopback.")
	f.Bool("log", false, "Append one line per received event to the activity log.")
	f.String("log-file", "", "Activity log path. Implies --log. (default \"$XDG_STATE_HOME/clin/listener.log\")")
	f.Duration("read-timeout", 0, fmt.Sprintf("How long a client may take to send its event. (default %s)", ipc.DefaultReadTimeout))

	listenInstallCmd.Flags().Bool("print", false, "Print the service configuration to stdout instead of installing it.")
	listenInstallCmd.Flags().Bool("public", false, "Install a listener that accepts connections on all interfaces.")
	listenInstallCmd.Flags().Bool("log", false, "Install a listener that writes the activity log.")

	listenCmd.AddCommand(listenInstallCmd)
	listenCmd.AddCommand(listenUninstallCmd)
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	setupLogging(slog.LevelInfo)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logEnabled, err := applyListenFlags(cmd, cfg)
	if err != nil {
		return err
	}

	var activity *slog.Logger
	if logEnabled {
		sink, err := openActivityLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer sink.Close()
		slog.Info("Writing activity log", "path", sink.Path())
		activity = slog.New(slog.NewTextHandler(sink, nil))
	}

	binding := ipc.Binding{Port: cfg.ListenPort, Public: cfg.Public}
	ipcServer, err := ipc.NewServer(binding, ipc.WithReadTimeout(cfg.ReadTimeoutDuration()))
	if err != nil {
		return err
	}
	defer ipcServer.Close()

	d := daemon.NewDaemon(ipcServer, notify.NewDesktop(), activity)
	return d.Run(cmd.Context())
}

// applyListenFlags overrides cfg with the listener flags and reports whether
// the activity log is enabled. A log_file in the config enables it too.
func applyListenFlags(cmd *cobra.Command, cfg *config.Config) (bool, error) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.ListenPort, _ = f.GetInt("port")
	}
	if f.Changed("public") {
		cfg.Public, _ = f.GetBool("public")
	}
	if f.Changed("log-file") {
		cfg.LogFile, _ = f.GetString("log-file")
	}
	if f.Changed("read-timeout") {
		d, err := durationFlag(cmd, "read-timeout")
		if err != nil {
			return false, err
		}
		cfg.ReadTimeout = d.String()
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	logEnabled, _ := f.GetBool("log")
	return logEnabled || cfg.LogFile != "", nil
}

func openActivityLog(path string) (*logsink.File, error) {
	if path == "" {
		var err error
		path, err = xdgpath.StatePath("listener.log")
		if err != nil {
			return nil, err
		}
	}
	return logsink.Open(path)
}

// serviceArgs is the command line a service manager runs the listener with.
func serviceArgs(cmd *cobra.Command) ([]string, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, err
	}
	args := []string{executable, "listen"}
	if public, _ := cmd.Flags().GetBool("public"); public {
		args = append(args, "--public")
	}
	if logEnabled, _ := cmd.Flags().GetBool("log"); logEnabled {
		args = append(args, "--log")
	}
	return args, nil
}

const systemdUnitTemplate = `[Unit]
Description=clin notification listener

[Service]
ExecStart=%s
Restart=always
Environment="CLIN_LOG_LEVEL=info"

[Install]
WantedBy=default.target
`

func systemdUnit(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t\"\\") {
			arg = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(arg) + `"`
		}
		quoted[i] = arg
	}
	return fmt.Sprintf(systemdUnitTemplate, strings.Join(quoted, " "))
}

const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.user.%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>%s/Library/Logs/clin-listener.log</string>
    <key>StandardErrorPath</key>
    <string>%s/Library/Logs/clin-listener.error.log</string>
</dict>
</plist>
`

func launchdPlist(args []string, homeDir string) string {
	var b strings.Builder
	for _, arg := range args {
		fmt.Fprintf(&b, "        <string>%s</string>\n", xmlEscape(arg))
	}
	home := xmlEscape(homeDir)
	return fmt.Sprintf(launchdPlistTemplate, serviceName, b.String(), home, home)
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
