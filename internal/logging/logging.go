// Package logging provides structured logging setup for the viewing scheduler.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup initializes the default slog logger on stdout.
// Dev mode uses human-readable text at debug level; prod uses JSON.
func Setup(devMode bool) {
	SetupTo(os.Stdout, devMode)
}

// SetupTo initializes the default slog logger on w.
func SetupTo(w io.Writer, devMode bool) {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	slog.SetDefault(slog.New(handler).With("service", "viewing-scheduler"))
}
