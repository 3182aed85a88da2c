package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	session "github.com/okian/gazetrack/internal/app"
)

type recordingRequest struct {
	Enabled *bool `json:"enabled"`
}

type recordingResponse struct {
	Recording bool `json:"recording"`
}

// RecordingHandler reads and toggles sample recording.
type RecordingHandler struct {
	control RecordingControl
}

// NewRecordingHandler creates a new recording handler.
func NewRecordingHandler(control RecordingControl) *RecordingHandler {
	return &RecordingHandler{control: control}
}

// HandleRecording handles GET and POST /recording requests.
func (h *RecordingHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, recordingResponse{Recording: h.control.Recording()})
		return
	case http.MethodPost:
	default:
		http.NotFound(w, r)
		return
	}

	var req recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing enabled", ErrBadRequest))
		return
	}

	var err error
	if *req.Enabled {
		err = h.control.StartRecording(r.Context())
	} else {
		err = h.control.StopRecording(r.Context())
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordingResponse{Recording: h.control.Recording()})
}

type logRequest struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Value   any    `json:"value"`
}

func (l logRequest) validate() error {
	msg, name := strings.TrimSpace(l.Message), strings.TrimSpace(l.Name)
	switch {
	case msg == "" && name == "":
		return errors.New("missing message or name")
	case msg != "" && name != "":
		return errors.New("message and name are exclusive")
	case strings.ContainsAny(l.Message+l.Name, "\r\n"):
		return errors.New("log lines must not contain newlines")
	}
	return nil
}

// LogHandler writes messages and variables to the data log.
type LogHandler struct {
	logger MessageLogger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(logger MessageLogger) *LogHandler {
	return &LogHandler{logger: logger}
}

// HandlePostLog handles POST /log requests. The body is either
// {"message": "..."} or {"name": "...", "value": ...}.
func (h *LogHandler) HandlePostLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	var err error
	if req.Name != "" {
		err = h.logger.LogVar(req.Name, req.Value)
	} else {
		err = h.logger.Log(req.Message)
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoLog):
		writeError(w, http.StatusConflict, "no_log", err)
	case errors.Is(err, session.ErrNotStarted), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
