// Package cron runs a job on a cron schedule. The server uses it to run the
// completion sweep periodically.
//
// Example usage:
//
//	trigger, err := cron.NewCronTrigger("*/10 * * * *", detector, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Runnable is implemented by anything that can be triggered by the cron scheduler.
type Runnable interface {
	Run() error
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func() error

// Run implements Runnable.
func (f RunnableFunc) Run() error { return f() }

// CronTrigger executes a Runnable according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	runnable Runnable
	logger   *slog.Logger
	clock    clock.Clock

	mu      sync.Mutex
	lastRun time.Time // protected by mu
	lastErr error     // protected by mu
}

// Option configures a CronTrigger.
type Option func(*CronTrigger)

// WithClock sets the clock used to wait for the next run.
func WithClock(c clock.Clock) Option {
	return func(ct *CronTrigger) {
		ct.clock = c
	}
}

// ParseSpec parses a standard 5 field cron spec (minute, hour, day, month, weekday).
func ParseSpec(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return schedule, nil
}

// NewCronTrigger creates a new CronTrigger with the given cron specification.
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewCronTrigger(spec string, runnable Runnable, logger *slog.Logger, opts ...Option) (*CronTrigger, error) {
	schedule, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}

	ct := &CronTrigger{
		spec:     spec,
		schedule: schedule,
		runnable: runnable,
		logger:   logger,
		clock:    clock.WallClock,
	}
	for _, opt := range opts {
		opt(ct)
	}
	return ct, nil
}

// Start launches a goroutine that triggers runs according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(ct.clock.Now())
}

// LastRun returns when the runnable last finished and the error it returned.
// The time is zero if it never ran.
func (ct *CronTrigger) LastRun() (time.Time, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.lastRun, ct.lastErr
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		now := ct.clock.Now()
		nextRun := ct.schedule.Next(now)
		waitDuration := nextRun.Sub(now)

		ct.logger.Debug("waiting for next scheduled run",
			"next_run", nextRun,
			"wait_duration", waitDuration,
		)

		select {
		case <-ctx.Done():
			ct.logger.Info("cron trigger shutting down")
			return
		case <-ct.clock.After(waitDuration):
			ct.executeRun()
		}
	}
}

func (ct *CronTrigger) executeRun() {
	ct.logger.Debug("starting scheduled run", "spec", ct.spec)

	err := ct.runnable.Run()
	if err != nil {
		ct.logger.Warn("scheduled run completed with error", "error", err)
	} else {
		ct.logger.Debug("scheduled run completed successfully")
	}

	ct.mu.Lock()
	ct.lastRun = ct.clock.Now()
	ct.lastErr = err
	ct.mu.Unlock()
}
