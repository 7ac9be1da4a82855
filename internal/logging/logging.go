// Package logging configures the process-wide charmbracelet logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Setup points the default logger at stderr with the given level.
// Verbose forces debug level and caller reporting.
func Setup(level string, verbose bool) error {
	return SetupWriter(os.Stderr, level, verbose)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, verbose bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if verbose {
		lvl = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    verbose,
		Level:           lvl,
	})
	log.SetDefault(logger)
	return nil
}

// ParseLevel accepts the level names used in config files, case-insensitively.
// An empty string means info.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
