package simtracker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/gazetrack/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger on stdout and, when logFile is
// set, on that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Simulated Eye Tracker
=====================

Serves the tracker JSON protocol over TCP with a synthetic gaze pattern.

Usage:
  go run ./cmd/sim-tracker [options]

Options:
  -addr string
        Listen address (default "127.0.0.1:6555")
  -framerate int
        Frames per second (default 60)
  -heartbeat duration
        Heartbeat interval reported to clients (default 250ms)
  -screen-w int
        Reported screen width in pixels (default 1024)
  -screen-h int
        Reported screen height in pixels (default 768)
  -log string
        Also write logs to this file
  -verbose
        Log every request
  -help
        Show this help message

Examples:
  # Serve on the default tracker port
  go run ./cmd/sim-tracker

  # 30 Hz device on a custom port, verbose
  go run ./cmd/sim-tracker -addr :7000 -framerate 30 -verbose
`)
}
