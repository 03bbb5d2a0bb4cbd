package ledger

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/metrics"
)

const (
	metricActivitiesStarted = "activities_started_total"
	metricActivitiesEvicted = "activities_evicted_total"
	metricLedgerSize        = "ledger_activities"
	metricPhasesEntered     = "phases_entered_total"
	metricAttachments       = "attachments_total"
	metricUntrackedLookups  = "untracked_lookups_total"
)

// ledgerMetrics holds the ledger's instruments. The zero value records nothing.
type ledgerMetrics struct {
	started   metrics.CounterVec
	evicted   metrics.Counter
	size      metrics.Gauge
	phases    metrics.CounterVec
	attached  metrics.CounterVec
	untracked metrics.CounterVec
}

func newLedgerMetrics(registry metrics.Registry) (*ledgerMetrics, error) {
	m := &ledgerMetrics{}
	if registry == nil {
		return m, nil
	}

	var err error
	m.started, err = registry.NewCounterVec(prometheus.CounterOpts{
		Name: metricActivitiesStarted,
		Help: "Count of provisioning activities started",
	}, []string{"cloud"})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricActivitiesStarted, err)
	}

	m.evicted, err = registry.NewCounter(prometheus.CounterOpts{
		Name: metricActivitiesEvicted,
		Help: "Count of activities aged out of the ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricActivitiesEvicted, err)
	}

	m.size, err = registry.NewGauge(prometheus.GaugeOpts{
		Name: metricLedgerSize,
		Help: "Number of activities currently held by the ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricLedgerSize, err)
	}

	m.phases, err = registry.NewCounterVec(prometheus.CounterOpts{
		Name: metricPhasesEntered,
		Help: "Count of phase entries across all activities",
	}, []string{"phase"})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricPhasesEntered, err)
	}

	m.attached, err = registry.NewCounterVec(prometheus.CounterOpts{
		Name: metricAttachments,
		Help: "Count of attachments recorded, by status",
	}, []string{"status"})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricAttachments, err)
	}

	m.untracked, err = registry.NewCounterVec(prometheus.CounterOpts{
		Name: metricUntrackedLookups,
		Help: "Count of lookups that matched no activity",
	}, []string{"key"})
	if err != nil {
		return nil, fmt.Errorf("creating %s metric: %w", metricUntrackedLookups, err)
	}

	return m, nil
}

func (m *ledgerMetrics) activityStarted(cloud string, size int) {
	if m.started != nil {
		m.started.With(prometheus.Labels{"cloud": cloud}).Inc()
	}
	m.setSize(size)
}

func (m *ledgerMetrics) activityEvicted() {
	if m.evicted != nil {
		m.evicted.Inc()
	}
}

func (m *ledgerMetrics) setSize(size int) {
	if m.size != nil {
		m.size.Set(float64(size))
	}
}

func (m *ledgerMetrics) phaseEntered(phase activity.Phase) {
	if m.phases != nil {
		m.phases.With(prometheus.Labels{"phase": phase.String()}).Inc()
	}
}

func (m *ledgerMetrics) attachmentAdded(status activity.Status) {
	if m.attached != nil {
		m.attached.With(prometheus.Labels{"status": status.String()}).Inc()
	}
}

func (m *ledgerMetrics) untrackedLookup(key string) {
	if m.untracked != nil {
		m.untracked.With(prometheus.Labels{"key": key}).Inc()
	}
}
