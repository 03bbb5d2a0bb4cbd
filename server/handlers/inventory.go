package handlers

import (
	"log/slog"
	"net/http"
	"slices"
)

// InventoryRequest is the full list of nodes currently known to the host.
type InventoryRequest struct {
	Nodes []string `json:"nodes"`
}

// InventoryHandler replaces the live node inventory read by the completion sweep.
type InventoryHandler struct {
	logger    *slog.Logger
	inventory InventoryUpdater
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(logger *slog.Logger, inventory InventoryUpdater) *InventoryHandler {
	return &InventoryHandler{
		logger:    logger,
		inventory: inventory,
	}
}

// ServeHTTP implements http.Handler.
func (h *InventoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req InventoryRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if slices.Contains(req.Nodes, "") {
		writeError(w, http.StatusBadRequest, "node names must not be empty")
		return
	}

	h.inventory.Set(req.Nodes)
	h.logger.Debug("inventory updated", "nodes", len(req.Nodes))
	w.WriteHeader(http.StatusAccepted)
}
