package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/cloudstats/buildinfo"
)

// NextSweepResponse describes the next scheduled completion sweep.
type NextSweepResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	// Active is false when no cloud is configured, i.e. there is nothing to report on.
	Active    bool                 `json:"active"`
	Capacity  int                  `json:"capacity"`
	Size      int                  `json:"size"`
	NextSweep NextSweepResponse    `json:"next_sweep"`
	Build     buildinfo.Properties `json:"build"`
}

// APIStatusProvider aggregates all the providers needed for the status endpoint.
type APIStatusProvider interface {
	LedgerStatusProvider
	SweepScheduler
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	provider APIStatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(provider APIStatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	next := h.provider.NextSweep()
	writeJSON(w, http.StatusOK, APIStatusResponse{
		Active:   h.provider.IsActive(),
		Capacity: h.provider.Capacity(),
		Size:     h.provider.Len(),
		NextSweep: NextSweepResponse{
			Scheduled: next != nil,
			NextRun:   next,
		},
		Build: buildinfo.Get(),
	})
}
