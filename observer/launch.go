package observer

import (
	"log/slog"

	"github.com/nomis52/cloudstats/activity"
)

// LaunchObserver records events reported by the node lifecycle manager.
// Nodes are identified by name.
type LaunchObserver struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewLaunchObserver creates a LaunchObserver. A nil logger uses slog.Default().
func NewLaunchObserver(recorder Recorder, logger *slog.Logger) *LaunchObserver {
	return &LaunchObserver{
		recorder: recorder,
		logger:   defaultLogger(logger),
	}
}

// PreLaunch is called when the node is about to be launched.
func (o *LaunchObserver) PreLaunch(node string) {
	defer recoverPanic(o.logger, "launch started")

	if a, ok := o.recorder.FindByNode(node); ok {
		o.recorder.EnterPhase(a, activity.PhaseLaunching)
	}
}

// OnLaunchFailure records err as a failure of the LAUNCHING phase.
func (o *LaunchObserver) OnLaunchFailure(node string, err error) {
	defer recoverPanic(o.logger, "launch failed")

	if a, ok := o.recorder.FindByNode(node); ok {
		o.recorder.Attach(a, activity.PhaseLaunching,
			activity.ErrorAttachment(activity.StatusFail, TitleLaunchFailed, err))
	}
}

// OnOnline moves the activity of node to OPERATING.
func (o *LaunchObserver) OnOnline(node string) {
	defer recoverPanic(o.logger, "node online")

	if a, ok := o.recorder.FindByNode(node); ok {
		o.recorder.EnterPhase(a, activity.PhaseOperating)
	}
}
