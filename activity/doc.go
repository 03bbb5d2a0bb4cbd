// Package activity models the lifecycle of a single cloud provisioning attempt.
//
// An Activity is created when a cloud announces a planned node and is then
// moved through its phases by whichever observer learns something about the
// node:
//
//	PROVISIONING → LAUNCHING → OPERATING → COMPLETED
//
// Phases are not enforced as a state machine. An observer may report into any
// phase, e.g. a provisioning failure never reaches LAUNCHING, and a node that
// disappears is swept into COMPLETED whatever its status.
//
// # Status
//
// Every phase carries a Status (OK < WARN < FAIL) that can only be raised, by
// attaching diagnostics:
//
//	a := activity.New("ec2", host.PlannedNode{ID: "i-1", DisplayName: "i-1"}, time.Now())
//	a.EnterPhase(activity.PhaseLaunching, time.Now())
//	a.Attach(activity.PhaseLaunching, time.Now(),
//	    activity.ErrorAttachment(activity.StatusFail, "Launch failed", err))
//	a.Status() // FAIL
//
// The overall status of an activity is the worst status of its phases.
//
// # Thread Safety
//
// All Activity methods are safe for concurrent use. Each activity has its own
// lock, so recording into different activities never contends. Readers get
// copies (PhaseExecution values, Snapshot) rather than references to live state.
package activity
