// Package ledger keeps the most recent provisioning activities and is the
// single place observers record into.
//
// A Ledger holds a fixed number of activities, oldest evicted first. All
// recording operations are safe to call from concurrent observers: the ring
// is guarded by its own lock and every activity by another, so updates to
// different activities never contend.
//
// # Example
//
//	l, err := ledger.New(100,
//	    ledger.WithLogger(logger),
//	    ledger.WithClouds(host.StaticClouds{"ec2"}),
//	)
//	if err != nil {
//	    return err
//	}
//
//	a := l.StartActivity("ec2", host.PlannedNode{ID: "p-1", DisplayName: "worker-1"})
//	l.EnterPhase(a, activity.PhaseLaunching)
//
//	for _, s := range l.Snapshots() { // oldest first
//	    fmt.Println(s.Name, s.Phase, s.Status)
//	}
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/host"
	"github.com/nomis52/cloudstats/logging"
	"github.com/nomis52/cloudstats/metrics"
	"github.com/nomis52/cloudstats/ringlog"
)

// DefaultCapacity is the number of activities kept when no capacity is configured.
const DefaultCapacity = 100

// Lookup keys reported for untracked lookups.
const (
	keyPlannedNode = "planned_node"
	keyNode        = "node"
)

// Ledger records provisioning activities.
type Ledger struct {
	log         *ringlog.Log[*activity.Activity]
	logger      *slog.Logger
	clock       clock.Clock
	clouds      host.CloudLister
	collector   *logging.LogCollector
	hook        logging.LoggerHook
	warnLimiter *rate.Limiter
	registry    metrics.Registry
	metrics     *ledgerMetrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for ledger and activity logs.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock sets the time source for activity and phase timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithClouds sets where the ledger learns about configured clouds.
func WithClouds(clouds host.CloudLister) Option {
	return func(l *Ledger) {
		l.clouds = clouds
	}
}

// WithLogCollector captures the log lines written for each activity in
// collector. They are available through Logs until the activity is evicted.
func WithLogCollector(collector *logging.LogCollector) Option {
	return func(l *Ledger) {
		l.collector = collector
	}
}

// WithMetricsRegistry reports ledger metrics to registry.
// If not provided, no metrics are recorded.
func WithMetricsRegistry(registry metrics.Registry) Option {
	return func(l *Ledger) {
		l.registry = registry
	}
}

// WithWarnLimiter limits how often untracked lookups are logged.
func WithWarnLimiter(limiter *rate.Limiter) Option {
	return func(l *Ledger) {
		l.warnLimiter = limiter
	}
}

// New creates a Ledger keeping at most capacity activities.
func New(capacity int, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		logger:      slog.Default(),
		clock:       clock.WallClock,
		hook:        logging.NopLoggerHook{},
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.collector != nil {
		l.hook = logging.NewCapturingLoggerHook(l.collector)
	}

	m, err := newLedgerMetrics(l.registry)
	if err != nil {
		return nil, err
	}
	l.metrics = m

	ring, err := ringlog.New(capacity, ringlog.WithEvictHook(l.evicted))
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}
	l.log = ring

	return l, nil
}

func (l *Ledger) evicted(a *activity.Activity) {
	if l.collector != nil {
		l.collector.Remove(a.ID())
	}
	l.metrics.activityEvicted()
}

func (l *Ledger) activityLogger(a *activity.Activity) *slog.Logger {
	return l.hook.LoggerForActivity(l.logger, a.ID())
}

// StartActivity creates an activity for plannedNode in PROVISIONING and
// appends it, evicting the oldest activity when the ledger is full.
func (l *Ledger) StartActivity(cloud string, plannedNode host.PlannedNode) *activity.Activity {
	a := activity.New(cloud, plannedNode, l.clock.Now())
	if l.collector != nil {
		l.collector.Register(a.ID())
	}
	l.log.Add(a)

	l.metrics.activityStarted(cloud, l.log.Len())
	l.metrics.phaseEntered(activity.PhaseProvisioning)
	l.activityLogger(a).Info("activity started",
		"cloud", cloud,
		"planned_node", plannedNode.ID,
		"name", plannedNode.DisplayName)
	return a
}

// FindByPlannedNode returns the activity started for the planned node handle.
// A miss is logged and counted; it is not an error.
func (l *Ledger) FindByPlannedNode(id string) (*activity.Activity, bool) {
	for _, a := range l.log.Snapshot() {
		if a.IsFor(id) {
			return a, true
		}
	}
	l.untracked(keyPlannedNode, id)
	return nil, false
}

// FindByNode returns the newest activity bound to the named node.
// A miss is logged and counted; it is not an error.
func (l *Ledger) FindByNode(name string) (*activity.Activity, bool) {
	snapshot := l.log.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if snapshot[i].IsForNode(name) {
			return snapshot[i], true
		}
	}
	l.untracked(keyNode, name)
	return nil, false
}

func (l *Ledger) untracked(key, value string) {
	l.metrics.untrackedLookup(key)
	if l.warnLimiter.Allow() {
		l.logger.Warn("no activity tracked", key, value)
	}
}

// EnterPhase starts phase on a unless it was already entered. It returns true
// if this call started the phase.
func (l *Ledger) EnterPhase(a *activity.Activity, phase activity.Phase) bool {
	if a == nil {
		return false
	}
	if !a.EnterPhase(phase, l.clock.Now()) {
		return false
	}
	l.metrics.phaseEntered(phase)
	l.activityLogger(a).Info("phase entered", "phase", phase)
	return true
}

// Attach records att against phase of a, entering the phase if needed and
// raising its status to at least att.Status.
func (l *Ledger) Attach(a *activity.Activity, phase activity.Phase, att activity.Attachment) {
	if a == nil || !phase.Valid() {
		return
	}
	if a.Attach(phase, l.clock.Now(), att) {
		l.metrics.phaseEntered(phase)
	}
	l.metrics.attachmentAdded(att.Status)

	args := []any{"phase", phase, "status", att.Status, "title", att.Title}
	if att.Cause != "" {
		args = append(args, "cause", att.Cause)
	}
	logger := l.activityLogger(a)
	switch att.Status {
	case activity.StatusFail:
		logger.Error("attachment added", args...)
	case activity.StatusWarn:
		logger.Warn("attachment added", args...)
	default:
		logger.Info("attachment added", args...)
	}
}

// AssignNode binds a to the provisioned node so later lookups by node name
// find it.
func (l *Ledger) AssignNode(a *activity.Activity, nodeName string) {
	if a == nil || nodeName == "" {
		return
	}
	a.SetNodeName(nodeName)
	l.activityLogger(a).Info("node assigned", "node", nodeName)
}

// Get returns the activity with the given id if it is still held.
func (l *Ledger) Get(id string) (*activity.Activity, bool) {
	for _, a := range l.log.Snapshot() {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Logs returns the log lines captured for the activity with the given id.
// It returns nil when no collector is configured or the activity is unknown.
func (l *Ledger) Logs(id string) []logging.LogEntry {
	if l.collector == nil {
		return nil
	}
	return l.collector.GetLogs(id)
}

// Activities returns the activities held, oldest first. The slice is a copy;
// the activities themselves are live.
func (l *Ledger) Activities() []*activity.Activity {
	return l.log.Snapshot()
}

// Snapshots returns a consistent copy of every activity held, oldest first.
func (l *Ledger) Snapshots() []activity.Snapshot {
	activities := l.log.Snapshot()
	result := make([]activity.Snapshot, 0, len(activities))
	for _, a := range activities {
		result = append(result, a.Snapshot())
	}
	return result
}

// Capacity returns the maximum number of activities held.
func (l *Ledger) Capacity() int {
	return l.log.Cap()
}

// Len returns the number of activities held.
func (l *Ledger) Len() int {
	return l.log.Len()
}

// IsActive reports whether any cloud is configured, i.e. whether there is
// anything to report on.
func (l *Ledger) IsActive() bool {
	return l.clouds != nil && len(l.clouds.Clouds()) > 0
}
