package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gazetrack/internal/adapters/device"
	"github.com/okian/gazetrack/internal/adapters/http/api"
	"github.com/okian/gazetrack/internal/adapters/http/swagger"
	"github.com/okian/gazetrack/internal/adapters/transport"
	session "github.com/okian/gazetrack/internal/app"
	"github.com/okian/gazetrack/internal/config"
	"github.com/okian/gazetrack/internal/domain/calibration"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/internal/tracker"
	"github.com/okian/gazetrack/pkg/logger"
	"github.com/okian/gazetrack/pkg/metrics"
)

// HTTP server timeout constants. There is no write timeout because
// /stream holds its connection open.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	initMetrics(cfg)

	if err := run(ctx, cfg, logger.Get()); err != nil {
		logger.Get().Error(ctx, "gazetrack stopped", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the session and serves the API until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	dev, err := newDevice(cfg, log)
	if err != nil {
		return err
	}

	opts, err := sessionOptions(cfg, dev, log)
	if err != nil {
		return err
	}
	sess := session.New(opts...)
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			log.Error(closeCtx, "session close failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, sess, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, sess),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("session", sess.ID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newDevice builds the tracker named by the configuration. The dummy
// tracker is driven by an in-memory mouse parked at the screen centre.
func newDevice(cfg *config.Config, log logger.Logger) (tracker.Device, error) {
	kind, err := tracker.ParseKind(cfg.Tracker)
	if err != nil {
		return nil, err
	}

	opts := []tracker.Option{
		tracker.WithLogger(log),
		tracker.WithScreen(cfg.ScreenResW, cfg.ScreenResH),
		tracker.WithSampleRate(cfg.SampleRate),
	}
	switch kind {
	case tracker.EyeTribe:
		opts = append(opts,
			tracker.WithEndpoint(cfg.Host, cfg.Port),
			tracker.WithTransportOptions(transport.WithDialTimeout(time.Duration(cfg.DialTimeoutMS)*time.Millisecond)),
			tracker.WithProxyOptions(
				device.WithGrace(time.Duration(cfg.GraceMS)*time.Millisecond),
				device.WithMaxWait(time.Duration(cfg.MaxWaitMS)*time.Millisecond),
				device.WithLogger(log),
			),
		)
	case tracker.Dummy:
		centre := model.Position{X: float64(cfg.ScreenResW) / 2, Y: float64(cfg.ScreenResH) / 2}
		opts = append(opts, tracker.WithMouse(tracker.NewMemMouse(centre)))
	}
	return tracker.New(kind, opts...)
}

// sessionOptions maps the configuration onto session options. The fixation
// policy is left to the tracker unless the configuration names one.
func sessionOptions(cfg *config.Config, dev tracker.Device, log logger.Logger) ([]session.Option, error) {
	opts := []session.Option{
		session.WithDevice(dev),
		session.WithLogger(log),
		session.WithLogFile(cfg.LogFile),
		session.WithQueueSize(cfg.QueueSize),
		session.WithDedupeWindow(cfg.DedupeWindow),
		session.WithGeometry(calibration.Geometry{
			ScreenResW:        cfg.ScreenResW,
			ScreenWidthCm:     cfg.ScreenWidthCm,
			ViewingDistanceCm: cfg.ViewingDistanceCm,
		}),
		session.WithSettings(calibration.Settings{
			SpeedDegPerSec:  cfg.SaccadeVelocityThreshold,
			AccelDegPerSec2: cfg.SaccadeAccelerationThreshold,
			FixationDeg:     cfg.FixationThreshold,
			WeightFactor:    cfg.WeightFactor,
		}),
		session.WithNoise(cfg.NoiseX, cfg.NoiseY),
	}
	if cfg.FixationPolicy != "" {
		policy, err := detect.ParseFixationPolicy(cfg.FixationPolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithFixationPolicy(policy))
	}
	return opts, nil
}

// newMux registers the docs and the tracking API.
func newMux(ctx context.Context, sess api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(sess).Register(ctx, mux)
	return mux
}

// initMetrics labels every metric with the tracker kind and sets the gauge
// refresh interval.
func initMetrics(cfg *config.Config) {
	metrics.Init(
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshMS)*time.Millisecond),
		metrics.WithCustomLabels(map[string]string{"tracker": cfg.Tracker}),
	)
}

// startServiceMetricsUpdater periodically mirrors the session counters into
// the gauges that are not updated on the hot path.
func startServiceMetricsUpdater(ctx context.Context, sess *session.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(sess.Stats())
		}
	}
}

func updateServiceMetrics(st session.Stats) {
	metrics.UpdateQueueSize(st.QueueLen)
	metrics.UpdateQueueCapacity(st.QueueCapacity)
	metrics.UpdateRecording(st.Recording)
}
