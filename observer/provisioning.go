package observer

import (
	"log/slog"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/host"
)

// ProvisioningObserver records events reported by the provisioning engine.
type ProvisioningObserver struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewProvisioningObserver creates a ProvisioningObserver. A nil logger uses slog.Default().
func NewProvisioningObserver(recorder Recorder, logger *slog.Logger) *ProvisioningObserver {
	return &ProvisioningObserver{
		recorder: recorder,
		logger:   defaultLogger(logger),
	}
}

// OnStarted starts one activity per planned node requested from cloud. A
// failure to record one planned node does not affect the others.
func (o *ProvisioningObserver) OnStarted(cloud string, plannedNodes ...host.PlannedNode) {
	for _, p := range plannedNodes {
		o.start(cloud, p)
	}
}

func (o *ProvisioningObserver) start(cloud string, plannedNode host.PlannedNode) {
	defer recoverPanic(o.logger, "provisioning started")

	o.recorder.StartActivity(cloud, plannedNode)
}

// OnComplete binds the activity of plannedNode to the node it produced and
// moves it to LAUNCHING.
func (o *ProvisioningObserver) OnComplete(plannedNode host.PlannedNode, node host.Node) {
	defer recoverPanic(o.logger, "provisioning completed")

	a, ok := o.recorder.FindByPlannedNode(plannedNode.ID)
	if !ok {
		return
	}
	o.recorder.AssignNode(a, node.Name)
	o.recorder.EnterPhase(a, activity.PhaseLaunching)
}

// OnFailure records err as a failure of the PROVISIONING phase.
func (o *ProvisioningObserver) OnFailure(plannedNode host.PlannedNode, err error) {
	defer recoverPanic(o.logger, "provisioning failed")

	a, ok := o.recorder.FindByPlannedNode(plannedNode.ID)
	if !ok {
		return
	}
	o.recorder.Attach(a, activity.PhaseProvisioning,
		activity.ErrorAttachment(activity.StatusFail, TitleProvisioningFailed, err))
}
