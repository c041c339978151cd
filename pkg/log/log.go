// Package log configures the process-wide structured logger shared by the
// terrawatch binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

const serviceName = "terrawatch"

// Setup installs the default logger. Unknown levels fall back to info.
// Output is logfmt-style text; LOG_FORMAT=json switches to JSON for log
// shippers.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", serviceName))
}

// WithModule returns the default logger tagged with the module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
