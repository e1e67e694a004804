// internal/scheduler/scheduler.go

// Package scheduler runs periodic jobs on a fixed tick, dropping ticks
// that arrive while the previous run is still in flight. Every loop in
// the bot schedules through it so a slow cycle can never stack.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/logger"
)

// Job is one schedulable unit of work. Errors are logged and swallowed
// at the loop boundary; a failed cycle never stops the loop.
type Job func(ctx context.Context) error

// Loop ticks a job at a fixed interval.
type Loop struct {
	name     string
	interval time.Duration
	job      Job
	busy     atomic.Bool
	log      *logger.Logger
}

func NewLoop(name string, interval time.Duration, job Job, log *logger.Logger) *Loop {
	return &Loop{
		name:     name,
		interval: interval,
		job:      job,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, running the job immediately and
// then on every tick. A tick that lands mid-cycle is dropped.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.log.Debug("previous cycle still running, tick dropped",
			zap.String("cycle", l.name))
		return
	}
	defer l.busy.Store(false)

	// Each run gets its own correlation id so a cycle's log lines can
	// be grouped across components.
	cycleLog := l.log.WithCycle(l.name)

	start := time.Now()
	if err := l.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		cycleLog.Error("cycle failed", zap.Error(err))
		return
	}
	cycleLog.Debug("cycle completed", zap.Duration("took", time.Since(start)))
}
