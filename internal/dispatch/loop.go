package dispatch

import (
	"context"
	"errors"
	"time"
)

// Waker ends the wait between cycles early.
type Waker interface {
	// Watch points the waker at the folder scanned by the last cycle.
	Watch(folder string)
	// C delivers a value when a new cycle should start.
	C() <-chan struct{}
}

// Loop runs dispatch cycles one after another with a fixed pause between them.
type Loop struct {
	Dispatcher *Dispatcher
	Interval   time.Duration
	// Waker is optional.
	Waker Waker
	// OnCycle receives every report, after the cycle and before the pause.
	OnCycle func(CycleReport)
}

// Run executes cycles until ctx is done. Cancellation is only observed
// between cycles: a running cycle always completes.
func (l *Loop) Run(ctx context.Context) error {
	if l.Dispatcher == nil {
		return errors.New("dispatch loop: dispatcher not configured")
	}
	if l.Interval <= 0 {
		return errors.New("dispatch loop: interval must be positive")
	}

	cycleCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		report := l.Dispatcher.RunCycle(cycleCtx, l.Dispatcher.now())
		if l.OnCycle != nil {
			l.OnCycle(report)
		}
		if l.Waker != nil && report.Folder != "" {
			l.Waker.Watch(report.Folder)
		}
		if !l.wait(ctx) {
			return nil
		}
	}
}

func (l *Loop) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.Interval)
	defer timer.Stop()

	var wake <-chan struct{}
	if l.Waker != nil {
		wake = l.Waker.C()
	}
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-wake:
		return true
	}
}
