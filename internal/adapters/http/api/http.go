// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	session "github.com/okian/gazetrack/internal/app"
	"github.com/okian/gazetrack/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the session implementation.
type Dependencies interface {
	SampleSource
	RecordingControl
	MessageLogger
	StatsProvider
}

// SampleSource exposes the current sample and blocks for newer ones.
type SampleSource interface {
	Latest() (model.Sample, bool)
	Seq() uint64
	NextSample(ctx context.Context, afterSeq uint64) (model.Sample, uint64, error)
}

// RecordingControl toggles sample logging.
type RecordingControl interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	Recording() bool
}

// MessageLogger writes to the data log.
type MessageLogger interface {
	Log(msg string) error
	LogVar(name string, value any) error
}

// StatsProvider returns the session counters.
type StatsProvider interface {
	Stats() session.Stats
}

// Server wires HTTP routes for the tracking API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sampleHandler    *SampleHandler
	recordingHandler *RecordingHandler
	logHandler       *LogHandler
	streamHandler    *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		sampleHandler:    NewSampleHandler(deps),
		recordingHandler: NewRecordingHandler(deps),
		logHandler:       NewLogHandler(deps),
		streamHandler:    NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sample", MetricsMiddleware(s.sampleHandler.HandleGetSample, "sample"))
	mux.HandleFunc("/recording", MetricsMiddleware(s.recordingHandler.HandleRecording, "recording"))
	mux.HandleFunc("/log", MetricsMiddleware(s.logHandler.HandlePostLog, "log"))
	mux.HandleFunc("/stream", MetricsMiddleware(s.streamHandler.HandleStream, "stream"))
}
