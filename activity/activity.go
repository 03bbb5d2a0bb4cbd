package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/cloudstats/host"
)

// Activity tracks one planned node from the provisioning request until the
// node is gone.
type Activity struct {
	id          string
	name        string
	cloud       string
	plannedNode string
	startedAt   time.Time

	mu       sync.Mutex
	nodeName string                       // protected by mu
	phases   [phaseCount]*PhaseExecution // protected by mu
}

// Snapshot is a point-in-time copy of an activity, suitable for rendering.
type Snapshot struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Cloud       string           `json:"cloud"`
	PlannedNode string           `json:"planned_node"`
	Node        string           `json:"node,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Phase       Phase            `json:"phase"`
	Status      Status           `json:"status"`
	Phases      []PhaseExecution `json:"phases"`
}

// New creates an activity for plannedNode, already in PhaseProvisioning.
func New(cloud string, plannedNode host.PlannedNode, at time.Time) *Activity {
	a := &Activity{
		id:          uuid.New().String(),
		name:        plannedNode.DisplayName,
		cloud:       cloud,
		plannedNode: plannedNode.ID,
		startedAt:   at,
	}
	a.phases[PhaseProvisioning] = &PhaseExecution{
		Phase:     PhaseProvisioning,
		StartedAt: at,
	}
	return a
}

// ID returns the unique id of the activity.
func (a *Activity) ID() string { return a.id }

// Name returns the display name of the planned node.
func (a *Activity) Name() string { return a.name }

// Cloud returns the name of the cloud that started the activity.
func (a *Activity) Cloud() string { return a.cloud }

// PlannedNode returns the planned node handle the activity was started for.
func (a *Activity) PlannedNode() string { return a.plannedNode }

// StartedAt returns when the activity was created.
func (a *Activity) StartedAt() time.Time { return a.startedAt }

// IsFor reports whether the activity tracks the given planned node handle.
func (a *Activity) IsFor(plannedNode string) bool {
	return a.plannedNode == plannedNode
}

// IsForNode reports whether the activity has been bound to the named node.
func (a *Activity) IsForNode(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return name != "" && a.nodeName == name
}

// NodeName returns the name of the provisioned node, or "" if provisioning
// has not completed yet.
func (a *Activity) NodeName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nodeName
}

// SetNodeName binds the activity to the provisioned node.
func (a *Activity) SetNodeName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodeName = name
}

// EnterPhase makes sure an execution exists for phase, starting it at the
// given time. It returns true if this call created the execution.
func (a *Activity) EnterPhase(phase Phase, at time.Time) bool {
	if !phase.Valid() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, created := a.enter(phase, at)
	return created
}

// Attach adds att to the execution of phase, entering the phase first if
// needed. A zero att.Time is set to at. It returns true if this call created
// the execution.
func (a *Activity) Attach(phase Phase, at time.Time, att Attachment) bool {
	if !phase.Valid() {
		return false
	}
	if att.Time.IsZero() {
		att.Time = at
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	exec, created := a.enter(phase, at)
	exec.attach(att)
	return created
}

// enter must be called with mu held.
func (a *Activity) enter(phase Phase, at time.Time) (*PhaseExecution, bool) {
	if exec := a.phases[phase]; exec != nil {
		return exec, false
	}
	exec := &PhaseExecution{
		Phase:     phase,
		StartedAt: at,
	}
	a.phases[phase] = exec
	return exec, true
}

// Status returns the worst status across all entered phases.
func (a *Activity) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status()
}

func (a *Activity) status() Status {
	status := StatusOK
	for _, exec := range a.phases {
		if exec != nil {
			status = status.Worse(exec.Status)
		}
	}
	return status
}

// Phase returns the latest phase entered.
func (a *Activity) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase()
}

func (a *Activity) phase() Phase {
	current := PhaseProvisioning
	for _, exec := range a.phases {
		if exec != nil {
			current = exec.Phase
		}
	}
	return current
}

// PhaseExecution returns a copy of the execution for phase, if entered.
func (a *Activity) PhaseExecution(phase Phase) (PhaseExecution, bool) {
	if !phase.Valid() {
		return PhaseExecution{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	exec := a.phases[phase]
	if exec == nil {
		return PhaseExecution{}, false
	}
	return exec.clone(), true
}

// PhaseExecutions returns copies of all entered executions in phase order.
func (a *Activity) PhaseExecutions() []PhaseExecution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executions()
}

func (a *Activity) executions() []PhaseExecution {
	result := make([]PhaseExecution, 0, len(a.phases))
	for _, exec := range a.phases {
		if exec != nil {
			result = append(result, exec.clone())
		}
	}
	return result
}

// Snapshot returns a consistent copy of the activity.
func (a *Activity) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		ID:          a.id,
		Name:        a.name,
		Cloud:       a.cloud,
		PlannedNode: a.plannedNode,
		Node:        a.nodeName,
		StartedAt:   a.startedAt,
		Phase:       a.phase(),
		Status:      a.status(),
		Phases:      a.executions(),
	}
}
