package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockRunnable is a test implementation of Runnable.
type mockRunnable struct {
	runCount atomic.Int32
	runErr   error
	ran      chan struct{}
}

func newMockRunnable(err error) *mockRunnable {
	return &mockRunnable{runErr: err, ran: make(chan struct{}, 10)}
}

func (m *mockRunnable) Run() error {
	m.runCount.Add(1)
	m.ran <- struct{}{}
	return m.runErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCronTrigger(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "every ten minutes", spec: "*/10 * * * *"},
		{name: "every hour", spec: "0 * * * *"},
		{name: "every minute", spec: "* * * * *"},
		{name: "empty", spec: "", wantErr: true},
		{name: "wrong format", spec: "not a cron spec", wantErr: true},
		{name: "too few fields", spec: "0 2 *", wantErr: true},
		{name: "invalid value", spec: "60 2 * * *", wantErr: true},
		{name: "seconds field not supported", spec: "0 */10 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewCronTrigger(tt.spec, newMockRunnable(nil), discardLogger())

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCronSpec)
				assert.Nil(t, trigger)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.spec, trigger.spec)
			}
		})
	}
}

func TestCronTrigger_NextRun(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 3, 0, 0, time.UTC))
	trigger, err := NewCronTrigger("*/10 * * * *", newMockRunnable(nil), discardLogger(), WithClock(clk))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC), trigger.NextRun())
}

func TestCronTrigger_RunsOnSchedule(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC))
	runnable := newMockRunnable(errors.New("inventory unavailable"))
	trigger, err := NewCronTrigger("* * * * *", runnable, discardLogger(), WithClock(clk))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trigger.Start(ctx)

	last, _ := trigger.LastRun()
	assert.True(t, last.IsZero())

	require.NoError(t, clk.WaitAdvance(30*time.Second, time.Second, 1))
	select {
	case <-runnable.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("runnable was not triggered")
	}

	require.NoError(t, clk.WaitAdvance(time.Minute, time.Second, 1))
	select {
	case <-runnable.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("runnable was not triggered a second time")
	}

	assert.Eventually(t, func() bool {
		last, err := trigger.LastRun()
		return !last.IsZero() && err != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), runnable.runCount.Load())
}

func TestCronTrigger_Start_CancellationStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC))
	runnable := newMockRunnable(nil)
	trigger, err := NewCronTrigger("* * * * *", runnable, discardLogger(), WithClock(clk))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)

	// Wait for the loop to block on the clock, then stop it.
	require.NoError(t, clk.WaitAdvance(0, time.Second, 1))
	cancel()

	assert.Equal(t, int32(0), runnable.runCount.Load())
}

func TestRunnableFunc(t *testing.T) {
	called := false
	var r Runnable = RunnableFunc(func() error {
		called = true
		return nil
	})
	require.NoError(t, r.Run())
	assert.True(t, called)
}
