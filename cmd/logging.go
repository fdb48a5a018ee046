package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mblarsen/clin/internal/config"
	"golang.org/x/term"
)

// setupLogging installs the console logger on stderr. CLIN_LOG_LEVEL
// overrides defaultLevel when it names a valid level.
func setupLogging(defaultLevel slog.Level) {
	logLevel := defaultLevel
	if levelStr := os.Getenv(config.EnvLogLevel); levelStr != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(levelStr)); err == nil {
			logLevel = l
		}
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		}),
	))
}
