package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/host"
	"github.com/nomis52/cloudstats/logging"
	"github.com/nomis52/cloudstats/metrics"
	"github.com/nomis52/cloudstats/ringlog"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func planned(id string) host.PlannedNode {
	return host.PlannedNode{ID: id, DisplayName: "node " + id}
}

func newTestLedger(t *testing.T, capacity int, opts ...Option) (*Ledger, *testclock.Clock, *bytes.Buffer) {
	t.Helper()
	clk := testclock.NewClock(epoch)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	opts = append([]Option{WithClock(clk), WithLogger(logger)}, opts...)
	l, err := New(capacity, opts...)
	require.NoError(t, err)
	return l, clk, &buf
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ringlog.ErrInvalidCapacity))
}

func TestLedger_StartActivity(t *testing.T) {
	l, _, _ := newTestLedger(t, 10)

	a := l.StartActivity("ec2", planned("i-1"))

	assert.NotEmpty(t, a.ID())
	assert.Equal(t, "node i-1", a.Name())
	assert.Equal(t, "ec2", a.Cloud())
	assert.Equal(t, "i-1", a.PlannedNode())
	assert.Equal(t, epoch, a.StartedAt())
	assert.Equal(t, activity.PhaseProvisioning, a.Phase())
	assert.Equal(t, activity.StatusOK, a.Status())
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 10, l.Capacity())
}

func TestLedger_LaunchFailureScenario(t *testing.T) {
	l, clk, _ := newTestLedger(t, 10)

	a := l.StartActivity("ec2", planned("i-1"))
	clk.Advance(time.Minute)
	assert.True(t, l.EnterPhase(a, activity.PhaseLaunching))
	clk.Advance(time.Minute)
	l.Attach(a, activity.PhaseLaunching, activity.NewAttachment(activity.StatusFail, "boot timeout"))

	assert.Equal(t, activity.StatusFail, a.Status())
	exec, ok := a.PhaseExecution(activity.PhaseLaunching)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Minute), exec.StartedAt)
	require.Len(t, exec.Attachments, 1)
	assert.Equal(t, "boot timeout", exec.Attachments[0].Title)
	assert.Equal(t, epoch.Add(2*time.Minute), exec.Attachments[0].Time)
}

func TestLedger_EnterPhaseIdempotent(t *testing.T) {
	l, clk, _ := newTestLedger(t, 10)
	a := l.StartActivity("ec2", planned("i-1"))

	assert.True(t, l.EnterPhase(a, activity.PhaseOperating))
	clk.Advance(time.Hour)
	assert.False(t, l.EnterPhase(a, activity.PhaseOperating))

	exec, ok := a.PhaseExecution(activity.PhaseOperating)
	require.True(t, ok)
	assert.Equal(t, epoch, exec.StartedAt)
}

func TestLedger_NilActivity(t *testing.T) {
	l, _, _ := newTestLedger(t, 10)

	assert.NotPanics(t, func() {
		assert.False(t, l.EnterPhase(nil, activity.PhaseLaunching))
		l.Attach(nil, activity.PhaseLaunching, activity.NewAttachment(activity.StatusFail, "x"))
		l.AssignNode(nil, "w1")
	})
}

func TestLedger_Eviction(t *testing.T) {
	l, _, _ := newTestLedger(t, 3)

	var ids []string
	for _, p := range []string{"A", "B", "C", "D"} {
		ids = append(ids, l.StartActivity("ec2", planned(p)).ID())
	}

	got := l.Activities()
	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].PlannedNode())
	assert.Equal(t, "C", got[1].PlannedNode())
	assert.Equal(t, "D", got[2].PlannedNode())

	_, ok := l.Get(ids[0])
	assert.False(t, ok)
	a, ok := l.Get(ids[3])
	require.True(t, ok)
	assert.Equal(t, "D", a.PlannedNode())
}

func TestLedger_FindByPlannedNode(t *testing.T) {
	l, _, buf := newTestLedger(t, 10)
	a := l.StartActivity("ec2", planned("i-1"))
	l.StartActivity("ec2", planned("i-2"))

	got, ok := l.FindByPlannedNode("i-1")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.NotContains(t, buf.String(), "no activity tracked")

	got, ok = l.FindByPlannedNode("never-started")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "no activity tracked")
	assert.Contains(t, buf.String(), "planned_node=never-started")
}

func TestLedger_FindByNode(t *testing.T) {
	l, _, _ := newTestLedger(t, 10)

	older := l.StartActivity("ec2", planned("i-1"))
	newer := l.StartActivity("ec2", planned("i-2"))
	other := l.StartActivity("ec2", planned("i-3"))

	_, ok := l.FindByNode("w1")
	assert.False(t, ok, "no activity is bound before AssignNode")

	l.AssignNode(older, "w1")
	l.AssignNode(newer, "w1")
	l.AssignNode(other, "w2")

	got, ok := l.FindByNode("w1")
	require.True(t, ok)
	assert.Same(t, newer, got, "the newest activity wins")

	got, ok = l.FindByNode("w2")
	require.True(t, ok)
	assert.Same(t, other, got)

	_, ok = l.FindByNode("")
	assert.False(t, ok)
}

func TestLedger_UntrackedWarningsRateLimited(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	l, _, buf := newTestLedger(t, 10,
		WithWarnLimiter(rate.NewLimiter(rate.Every(time.Hour), 2)),
		WithMetricsRegistry(registry))

	for i := 0; i < 5; i++ {
		l.FindByNode(fmt.Sprintf("w%d", i))
	}

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("no activity tracked")))
	assert.Contains(t, scrape(t, registry), `untracked_lookups_total{key="node"} 5`)
}

func TestLedger_Metrics(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	l, _, _ := newTestLedger(t, 2, WithMetricsRegistry(registry))

	a := l.StartActivity("ec2", planned("i-1"))
	l.StartActivity("gce", planned("i-2"))
	l.StartActivity("ec2", planned("i-3"))
	l.EnterPhase(a, activity.PhaseLaunching)
	l.EnterPhase(a, activity.PhaseLaunching)
	l.Attach(a, activity.PhaseOperating, activity.NewAttachment(activity.StatusWarn, "slow"))

	body := scrape(t, registry)
	assert.Contains(t, body, `activities_started_total{cloud="ec2"} 2`)
	assert.Contains(t, body, `activities_started_total{cloud="gce"} 1`)
	assert.Contains(t, body, "activities_evicted_total 1")
	assert.Contains(t, body, "ledger_activities 2")
	assert.Contains(t, body, `phases_entered_total{phase="PROVISIONING"} 3`)
	assert.Contains(t, body, `phases_entered_total{phase="LAUNCHING"} 1`)
	assert.Contains(t, body, `phases_entered_total{phase="OPERATING"} 1`)
	assert.Contains(t, body, `attachments_total{status="WARN"} 1`)
}

func TestLedger_Logs(t *testing.T) {
	collector := logging.NewLogCollector(logging.DefaultMaxEntries)
	l, _, _ := newTestLedger(t, 1, WithLogCollector(collector))

	a := l.StartActivity("ec2", planned("i-1"))
	l.AssignNode(a, "w1")
	l.Attach(a, activity.PhaseLaunching,
		activity.ErrorAttachment(activity.StatusFail, "Launch failed", errors.New("ssh refused")))

	logs := l.Logs(a.ID())
	require.Len(t, logs, 3)
	assert.Equal(t, "activity started", logs[0].Message)
	assert.Equal(t, "node assigned", logs[1].Message)
	assert.Equal(t, "w1", logs[1].Attributes["node"])
	assert.Equal(t, "attachment added", logs[2].Message)
	assert.Equal(t, "ERROR", logs[2].Level)
	assert.Equal(t, "ssh refused", logs[2].Attributes["cause"])

	// Evicting the activity drops its logs.
	l.StartActivity("ec2", planned("i-2"))
	assert.Empty(t, l.Logs(a.ID()))
}

func TestLedger_LateWriteToEvictedActivity(t *testing.T) {
	collector := logging.NewLogCollector(logging.DefaultMaxEntries)
	l, _, _ := newTestLedger(t, 1, WithLogCollector(collector))

	evicted := l.StartActivity("ec2", planned("i-1"))
	kept := l.StartActivity("ec2", planned("i-2"))
	require.Equal(t, 1, collector.Len())

	l.AssignNode(evicted, "w1")
	l.EnterPhase(evicted, activity.PhaseLaunching)
	l.Attach(evicted, activity.PhaseLaunching,
		activity.ErrorAttachment(activity.StatusFail, "Launch failed", errors.New("boot timeout")))

	assert.Equal(t, 1, collector.Len())
	assert.Nil(t, l.Logs(evicted.ID()))
	assert.Len(t, l.Logs(kept.ID()), 1)
}

func TestLedger_ConcurrentRecordingBoundsLogs(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		capacity = 3
		writers  = 8
		perWrite = 50
	)
	collector := logging.NewLogCollector(logging.DefaultMaxEntries)
	l, _, _ := newTestLedger(t, capacity, WithLogCollector(collector))

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWrite; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				a := l.StartActivity("ec2", planned(id))
				l.AssignNode(a, "node-"+id)
				l.EnterPhase(a, activity.PhaseLaunching)
				l.EnterPhase(a, activity.PhaseOperating)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, capacity, l.Len())
	assert.Equal(t, l.Len(), collector.Len(), "only held activities keep logs")
}

func TestLedger_ConcurrentAttachCountsPhaseOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	l, _, _ := newTestLedger(t, 5, WithMetricsRegistry(registry))
	a := l.StartActivity("ec2", planned("i-1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				l.EnterPhase(a, activity.PhaseLaunching)
				return
			}
			l.Attach(a, activity.PhaseLaunching, activity.NewAttachment(activity.StatusWarn, "slow"))
		}(i)
	}
	wg.Wait()

	body := scrape(t, registry)
	assert.Contains(t, body, `phases_entered_total{phase="LAUNCHING"} 1`)
	assert.Contains(t, body, `attachments_total{status="WARN"} 25`)
}

func TestLedger_LogsWithoutCollector(t *testing.T) {
	l, _, _ := newTestLedger(t, 1)
	a := l.StartActivity("ec2", planned("i-1"))
	assert.Nil(t, l.Logs(a.ID()))
}

func TestLedger_IsActive(t *testing.T) {
	l, _, _ := newTestLedger(t, 1)
	assert.False(t, l.IsActive())

	l, _, _ = newTestLedger(t, 1, WithClouds(host.StaticClouds{}))
	assert.False(t, l.IsActive())

	l, _, _ = newTestLedger(t, 1, WithClouds(host.StaticClouds{"ec2"}))
	assert.True(t, l.IsActive())
}

func TestLedger_Snapshots(t *testing.T) {
	l, _, _ := newTestLedger(t, 10)
	a := l.StartActivity("ec2", planned("i-1"))
	l.AssignNode(a, "w1")
	l.EnterPhase(a, activity.PhaseOperating)
	l.StartActivity("ec2", planned("i-2"))

	snaps := l.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, a.ID(), snaps[0].ID)
	assert.Equal(t, "w1", snaps[0].Node)
	assert.Equal(t, activity.PhaseOperating, snaps[0].Phase)
	assert.Len(t, snaps[0].Phases, 2)
	assert.Equal(t, "i-2", snaps[1].PlannedNode)
}

func TestLedger_ConcurrentRecording(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		capacity = 20
		clouds   = 4
		perCloud = 50
	)
	l, _, _ := newTestLedger(t, capacity)

	var wg sync.WaitGroup
	for c := 0; c < clouds; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perCloud; i++ {
				id := fmt.Sprintf("c%d-%d", c, i)
				a := l.StartActivity(fmt.Sprintf("cloud-%d", c), planned(id))
				l.AssignNode(a, "w-"+id)
				l.EnterPhase(a, activity.PhaseLaunching)
				l.Attach(a, activity.PhaseLaunching, activity.NewAttachment(activity.StatusWarn, "slow"))
				l.EnterPhase(a, activity.PhaseOperating)
			}
		}(c)
	}

	done := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			snaps := l.Snapshots()
			assert.LessOrEqual(t, len(snaps), capacity)
			seen := make(map[string]bool, len(snaps))
			for _, s := range snaps {
				assert.False(t, seen[s.ID], "duplicate activity %s", s.ID)
				seen[s.ID] = true
			}
		}
	}()

	wg.Wait()
	close(done)
	<-readerDone

	snaps := l.Snapshots()
	require.Len(t, snaps, capacity)
	for _, s := range snaps {
		assert.Equal(t, activity.PhaseOperating, s.Phase)
		assert.Equal(t, activity.StatusWarn, s.Status)
		assert.Len(t, s.Phases, 3)
	}
}

func TestLedger_ConcurrentEnterPhaseSameActivity(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, _, _ := newTestLedger(t, 5)
	a := l.StartActivity("ec2", planned("i-1"))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.EnterPhase(a, activity.PhaseLaunching) {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, a.PhaseExecutions(), 2)
}

func scrape(t *testing.T, registry *metrics.ScrapeRegistry) string {
	t.Helper()
	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}
