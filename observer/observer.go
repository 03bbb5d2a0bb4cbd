// Package observer turns events from the host's provisioning engine and node
// lifecycle manager into ledger records.
//
// Each observer is a plain struct holding a Recorder. Observer methods are
// called from the host's own goroutines and must never disrupt them: lookup
// misses are left to the Recorder to log, and a panic raised while recording
// is recovered and logged.
package observer

import (
	"log/slog"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/host"
)

// Recorder is the part of the ledger the observers write to. *ledger.Ledger
// implements it.
type Recorder interface {
	StartActivity(cloud string, plannedNode host.PlannedNode) *activity.Activity
	FindByPlannedNode(id string) (*activity.Activity, bool)
	FindByNode(name string) (*activity.Activity, bool)
	EnterPhase(a *activity.Activity, phase activity.Phase) bool
	Attach(a *activity.Activity, phase activity.Phase, att activity.Attachment)
	AssignNode(a *activity.Activity, nodeName string)
}

// Titles of the attachments recorded for reported failures.
const (
	TitleProvisioningFailed = "Provisioning failed"
	TitleLaunchFailed       = "Launch failed"
)

// recoverPanic must be deferred directly by an observer method.
func recoverPanic(logger *slog.Logger, event string) {
	if r := recover(); r != nil {
		logger.Error("recording event panicked", "event", event, "panic", r)
	}
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
