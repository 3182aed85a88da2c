package api

import (
	"net/http"

	"github.com/okian/gazetrack/internal/domain/types"
)

// SampleHandler serves the current sample.
type SampleHandler struct {
	source SampleSource
}

// NewSampleHandler creates a new sample handler.
func NewSampleHandler(source SampleSource) *SampleHandler {
	return &SampleHandler{source: source}
}

// HandleGetSample handles GET /sample requests.
func (h *SampleHandler) HandleGetSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s, ok := h.source.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no_sample", ErrNoSample)
		return
	}
	writeJSON(w, http.StatusOK, types.FromSample(h.source.Seq(), s))
}
