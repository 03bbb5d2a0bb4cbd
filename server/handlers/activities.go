package handlers

import (
	"net/http"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/logging"
)

// ActivitiesHandler lists the activities held by the ledger, oldest first.
type ActivitiesHandler struct {
	provider ActivityProvider
}

// NewActivitiesHandler creates a new ActivitiesHandler.
func NewActivitiesHandler(provider ActivityProvider) *ActivitiesHandler {
	return &ActivitiesHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshots := h.provider.Snapshots()
	if snapshots == nil {
		snapshots = []activity.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// ActivityHandler returns a single activity by the {id} path value.
type ActivityHandler struct {
	provider ActivityProvider
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(provider ActivityProvider) *ActivityHandler {
	return &ActivityHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, ok := h.provider.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, a.Snapshot())
}

// ActivityLogsHandler returns the log lines captured for an activity.
type ActivityLogsHandler struct {
	provider ActivityProvider
}

// NewActivityLogsHandler creates a new ActivityLogsHandler.
func NewActivityLogsHandler(provider ActivityProvider) *ActivityLogsHandler {
	return &ActivityLogsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ActivityLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.provider.Get(id); !ok {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}
	logs := h.provider.Logs(id)
	if logs == nil {
		logs = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}
