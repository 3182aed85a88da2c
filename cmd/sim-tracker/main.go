package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/gazetrack/internal/simtracker"
	"github.com/okian/gazetrack/pkg/logger"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:6555", "Listen address")
		frameRate = flag.Int("framerate", simtracker.DefaultFrameRate, "Frames per second")
		heartbeat = flag.Duration("heartbeat", simtracker.DefaultHeartbeatInterval, "Heartbeat interval reported to clients")
		screenW   = flag.Int("screen-w", simtracker.DefaultScreenW, "Reported screen width in pixels")
		screenH   = flag.Int("screen-h", simtracker.DefaultScreenH, "Reported screen height in pixels")
		logFile   = flag.String("log", "", "Also write logs to this file")
		verbose   = flag.Bool("verbose", false, "Log every request")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simtracker.ShowHelp()
		return
	}

	if err := simtracker.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := simtracker.New(
		simtracker.WithAddr(*addr),
		simtracker.WithFrameRate(*frameRate),
		simtracker.WithHeartbeatInterval(*heartbeat),
		simtracker.WithScreen(*screenW, *screenH),
		simtracker.WithVerbose(*verbose),
	)
	srv.SetLogger(logger.Named("simtracker"))

	if err := srv.Run(ctx); err != nil {
		logger.Get().Error(ctx, "simulated tracker failed", logger.Error(err))
		os.Exit(1)
	}
}
