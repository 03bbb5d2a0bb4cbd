package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nomis52/cloudstats/host"
)

// SweepResponse lists the nodes found gone by a sweep.
type SweepResponse struct {
	Completed []string `json:"completed"`
}

// SweepHandler runs a completion sweep against the current inventory.
type SweepHandler struct {
	logger    *slog.Logger
	sweeper   Sweeper
	inventory host.Inventory
}

// NewSweepHandler creates a new SweepHandler.
func NewSweepHandler(logger *slog.Logger, sweeper Sweeper, inventory host.Inventory) *SweepHandler {
	return &SweepHandler{
		logger:    logger,
		sweeper:   sweeper,
		inventory: inventory,
	}
}

// ServeHTTP implements http.Handler.
func (h *SweepHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gone := h.sweeper.Sweep(h.inventory.LiveNodes())
	if gone == nil {
		gone = []string{}
	}
	h.logger.Info("sweep requested", "completed", len(gone))
	writeJSON(w, http.StatusOK, SweepResponse{Completed: gone})
}
