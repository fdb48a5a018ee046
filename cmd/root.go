package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/mblarsen/clin/internal/config"
	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/notify"
	"github.com/mblarsen/clin/internal/runner"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X github.com/mblarsen/clin/cmd.version=...".
var version = "dev"

// exitCode is the status the process exits with when no command returned an
// error. Client mode sets it to the wrapped command's exit code.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "clin [flags] [--] <command> [args...]",
	Short: "Run a command and get notified when it completes.",
	Long: `clin runs a command to completion and then shows a desktop notification with
its exit status and how long it took.

With --send the notification is delivered over TCP to a "clin listen" process
instead, typically on your workstation through a forwarded port:

  ssh -R 6445:127.0.0.1:6445 build-box
  build-box$ clin --send -- make release

clin always exits with the wrapped command's exit code. Use -- before commands
named like a clin subcommand.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	f := rootCmd.Flags()
	f.BoolP("send", "s", false, "Send the notification to a listener instead of showing it locally.")
	f.String("host", "", "Listener host to send to. (default \"127.0.0.1\")")
	f.IntP("port", "p", 0, fmt.Sprintf("Listener port to send to. (default %d)", ipc.DefaultPort))
	f.String("origin", "", "Label identifying this machine in notifications. (default hostname)")
	f.BoolP("quiet", "q", false, "Do not echo the command before running it.")
	f.Duration("connect-timeout", 0, fmt.Sprintf("How long to wait for the listener to accept. (default %s)", ipc.DefaultConnectTimeout))
	f.StringP("command", "c", "", "Run this text through the shell instead of the trailing arguments.")
	// Everything after the command name belongs to the command.
	f.SetInterspersed(false)

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})
}

// Execute runs the root command and exits the process.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitFailure)
	}
	os.Exit(exitCode)
}

func runClient(cmd *cobra.Command, args []string) error {
	setupLogging(slog.LevelWarn)

	script, _ := cmd.Flags().GetString("command")
	c := runner.Command{Args: args, Script: script}
	if c.Text() == "" {
		_ = cmd.Help()
		exitCode = exitUsage
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyClientFlags(cmd, cfg); err != nil {
		return err
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "clin: `%s`\n", c.Text())
	}

	r := runner.New(cfg.ResolvedOrigin(), deliverFunc(cfg))
	res, err := r.Run(cmd.Context(), c)
	if err != nil {
		var spawnErr *runner.SpawnError
		if errors.As(err, &spawnErr) {
			return &exitError{code: spawnErr.ExitCode(), err: spawnErr}
		}
		return err
	}
	exitCode = res.ExitCode
	return nil
}

// applyClientFlags overrides cfg with the flags given on the command line.
func applyClientFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("send") {
		cfg.Send, _ = f.GetBool("send")
	}
	if f.Changed("host") {
		cfg.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("origin") {
		cfg.Origin, _ = f.GetString("origin")
	}
	if f.Changed("connect-timeout") {
		d, err := durationFlag(cmd, "connect-timeout")
		if err != nil {
			return err
		}
		cfg.ConnectTimeout = d.String()
	}
	return cfg.Validate()
}

// deliverFunc picks where the completion event goes: a remote listener when
// sending, otherwise a desktop notification on this machine.
func deliverFunc(cfg *config.Config) runner.DeliverFunc {
	if cfg.Send {
		client := ipc.NewClient(cfg.Host, cfg.Port)
		client.ConnectTimeout = cfg.ConnectTimeoutDuration()
		return client.Send
	}
	return notifyLocally(notify.NewDesktop())
}

func notifyLocally(n notify.Notifier) runner.DeliverFunc {
	return func(_ context.Context, e ipc.Event) ipc.Delivery {
		title, message := notify.Format(e)
		return ipc.Delivery{Addr: "local", Err: n.Notify(title, message)}
	}
}

func loadConfig() (*config.Config, error) {
	path, err := config.ResolvePath()
	if err != nil {
		return nil, err
	}
	slog.Debug("Loading config", "path", path)
	return config.Load(path)
}

// durationFlag reads a duration flag and rejects values that would disable
// the timeout it controls.
func durationFlag(cmd *cobra.Command, name string) (time.Duration, error) {
	d, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, &exitError{code: exitUsage, err: fmt.Errorf("--%s must be positive, got %s", name, d)}
	}
	return d, nil
}
