package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nomis52/cloudstats/host"
)

// ProvisioningStartedRequest announces planned nodes requested from a cloud.
type ProvisioningStartedRequest struct {
	Cloud        string             `json:"cloud"`
	PlannedNodes []host.PlannedNode `json:"planned_nodes"`
}

// ProvisioningCompletedRequest reports the node a planned node turned into.
type ProvisioningCompletedRequest struct {
	PlannedNode host.PlannedNode `json:"planned_node"`
	Node        string           `json:"node"`
}

// ProvisioningFailedRequest reports a planned node that could not be provisioned.
type ProvisioningFailedRequest struct {
	PlannedNode host.PlannedNode `json:"planned_node"`
	Error       string           `json:"error"`
}

// NodeEventRequest reports a lifecycle event of a provisioned node. Error is
// only used by launch failures.
type NodeEventRequest struct {
	Node  string `json:"node"`
	Error string `json:"error,omitempty"`
}

// eventHandler decodes and validates an event body, hands it to apply and
// answers 202 Accepted.
type eventHandler[T any] struct {
	logger   *slog.Logger
	event    string
	validate func(*T) error
	apply    func(*T)
}

// ServeHTTP implements http.Handler.
func (h *eventHandler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req T
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.apply(&req)
	h.logger.Debug("event received", "event", h.event)
	w.WriteHeader(http.StatusAccepted)
}

// NewProvisioningStartedHandler handles POST /api/events/provisioning/started.
func NewProvisioningStartedHandler(logger *slog.Logger, events ProvisioningEvents) http.Handler {
	return &eventHandler[ProvisioningStartedRequest]{
		logger: logger,
		event:  "provisioning started",
		validate: func(req *ProvisioningStartedRequest) error {
			if req.Cloud == "" {
				return errors.New("cloud is required")
			}
			if len(req.PlannedNodes) == 0 {
				return errors.New("planned_nodes must not be empty")
			}
			for i, p := range req.PlannedNodes {
				if err := validatePlannedNode(p); err != nil {
					return fmt.Errorf("planned_nodes[%d]: %w", i, err)
				}
			}
			return nil
		},
		apply: func(req *ProvisioningStartedRequest) {
			events.OnStarted(req.Cloud, req.PlannedNodes...)
		},
	}
}

// NewProvisioningCompletedHandler handles POST /api/events/provisioning/completed.
func NewProvisioningCompletedHandler(logger *slog.Logger, events ProvisioningEvents) http.Handler {
	return &eventHandler[ProvisioningCompletedRequest]{
		logger: logger,
		event:  "provisioning completed",
		validate: func(req *ProvisioningCompletedRequest) error {
			if err := validatePlannedNode(req.PlannedNode); err != nil {
				return fmt.Errorf("planned_node: %w", err)
			}
			if req.Node == "" {
				return errors.New("node is required")
			}
			return nil
		},
		apply: func(req *ProvisioningCompletedRequest) {
			events.OnComplete(req.PlannedNode, host.Node{Name: req.Node})
		},
	}
}

// NewProvisioningFailedHandler handles POST /api/events/provisioning/failed.
func NewProvisioningFailedHandler(logger *slog.Logger, events ProvisioningEvents) http.Handler {
	return &eventHandler[ProvisioningFailedRequest]{
		logger: logger,
		event:  "provisioning failed",
		validate: func(req *ProvisioningFailedRequest) error {
			if err := validatePlannedNode(req.PlannedNode); err != nil {
				return fmt.Errorf("planned_node: %w", err)
			}
			return nil
		},
		apply: func(req *ProvisioningFailedRequest) {
			events.OnFailure(req.PlannedNode, causeOf(req.Error))
		},
	}
}

// NewLaunchStartedHandler handles POST /api/events/launch/started.
func NewLaunchStartedHandler(logger *slog.Logger, events LaunchEvents) http.Handler {
	return &eventHandler[NodeEventRequest]{
		logger:   logger,
		event:    "launch started",
		validate: validateNodeEvent,
		apply: func(req *NodeEventRequest) {
			events.PreLaunch(req.Node)
		},
	}
}

// NewLaunchFailedHandler handles POST /api/events/launch/failed.
func NewLaunchFailedHandler(logger *slog.Logger, events LaunchEvents) http.Handler {
	return &eventHandler[NodeEventRequest]{
		logger:   logger,
		event:    "launch failed",
		validate: validateNodeEvent,
		apply: func(req *NodeEventRequest) {
			events.OnLaunchFailure(req.Node, causeOf(req.Error))
		},
	}
}

// NewOnlineHandler handles POST /api/events/online.
func NewOnlineHandler(logger *slog.Logger, events LaunchEvents) http.Handler {
	return &eventHandler[NodeEventRequest]{
		logger:   logger,
		event:    "node online",
		validate: validateNodeEvent,
		apply: func(req *NodeEventRequest) {
			events.OnOnline(req.Node)
		},
	}
}

func validatePlannedNode(p host.PlannedNode) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

func validateNodeEvent(req *NodeEventRequest) error {
	if req.Node == "" {
		return errors.New("node is required")
	}
	return nil
}

// causeOf turns a reported error message back into an error. An empty
// message means no cause was reported.
func causeOf(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
