// Package handlers provides HTTP handlers for the cloudstats server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/config"
	"github.com/nomis52/cloudstats/host"
	"github.com/nomis52/cloudstats/logging"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// ActivityProvider provides read access to the ledger.
type ActivityProvider interface {
	Snapshots() []activity.Snapshot
	Get(id string) (*activity.Activity, bool)
	Logs(id string) []logging.LogEntry
}

// LedgerStatusProvider reports the state of the ledger.
type LedgerStatusProvider interface {
	IsActive() bool
	Capacity() int
	Len() int
}

// SweepScheduler reports when the next completion sweep runs.
type SweepScheduler interface {
	NextSweep() *time.Time
}

// ProvisioningEvents receives events from the provisioning engine.
type ProvisioningEvents interface {
	OnStarted(cloud string, plannedNodes ...host.PlannedNode)
	OnComplete(plannedNode host.PlannedNode, node host.Node)
	OnFailure(plannedNode host.PlannedNode, err error)
}

// LaunchEvents receives events from the node lifecycle manager.
type LaunchEvents interface {
	PreLaunch(node string)
	OnLaunchFailure(node string, err error)
	OnOnline(node string)
}

// InventoryUpdater replaces the live node inventory.
type InventoryUpdater interface {
	Set(nodes []string)
}

// Sweeper completes the activities of nodes missing from current.
type Sweeper interface {
	Sweep(current []string) []string
}
