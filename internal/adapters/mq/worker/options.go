// Package worker runs the background loops of a tracking session.
package worker

import (
	"time"

	"github.com/okian/gazetrack/pkg/clock"
	"github.com/okian/gazetrack/pkg/logger"
)

type settings struct {
	name   string
	logger logger.Logger
	clock  clock.Clock
	wait   time.Duration
}

// Option applies a configuration option to a worker.
type Option func(*settings)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the experiment clock used for latency metrics.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPopWait sets how long the consumer blocks on an empty queue before
// re-checking for shutdown.
func WithPopWait(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.wait = d
		}
	}
}

func apply(name string, opts []Option) settings {
	s := settings{
		name:   name,
		logger: logger.Nop(),
		wait:   defaultPopWait,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.Named(s.name)
	return s
}
