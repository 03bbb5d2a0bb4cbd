package observer

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/host"
)

// ErrNoInventory is returned by Run when the detector has no inventory to read.
var ErrNoInventory = errors.New("no node inventory configured")

// CompletionDetector infers that nodes are gone by comparing the live node
// inventory between two sweeps. Every node present in the previous sweep but
// missing from the current one has its activity moved to COMPLETED.
//
// The first sweep only records a baseline.
type CompletionDetector struct {
	recorder  Recorder
	inventory host.Inventory
	logger    *slog.Logger

	mu   sync.Mutex
	last map[string]struct{} // protected by mu, nil until the first sweep
}

// NewCompletionDetector creates a CompletionDetector. inventory is only used
// by Run and may be nil when sweeps are driven through Sweep.
func NewCompletionDetector(recorder Recorder, inventory host.Inventory, logger *slog.Logger) *CompletionDetector {
	return &CompletionDetector{
		recorder:  recorder,
		inventory: inventory,
		logger:    defaultLogger(logger),
	}
}

// Run sweeps the current inventory. It implements cron.Runnable.
func (d *CompletionDetector) Run() error {
	if d.inventory == nil {
		return ErrNoInventory
	}
	d.Sweep(d.inventory.LiveNodes())
	return nil
}

// Sweep compares current with the nodes seen by the previous sweep and
// completes the activities of nodes that disappeared. It returns the names of
// those nodes, sorted.
func (d *CompletionDetector) Sweep(current []string) []string {
	next := make(map[string]struct{}, len(current))
	for _, name := range current {
		next[name] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil {
		d.last = next
		d.logger.Debug("recorded baseline inventory", "nodes", len(next))
		return nil
	}

	var gone []string
	for name := range d.last {
		if _, ok := next[name]; !ok {
			gone = append(gone, name)
		}
	}
	d.last = next
	sort.Strings(gone)

	for _, name := range gone {
		d.complete(name)
	}
	if len(gone) > 0 {
		d.logger.Info("nodes disappeared", "count", len(gone))
	}
	return gone
}

func (d *CompletionDetector) complete(node string) {
	defer recoverPanic(d.logger, "node gone")

	if a, ok := d.recorder.FindByNode(node); ok {
		d.recorder.EnterPhase(a, activity.PhaseCompleted)
	}
}
