package operator

import (
	"context"
	"time"
)

// Task is a handle on a repeating background loop.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// startTask runs fn, then sleeps interval, until ctx or the task is
// cancelled. Cancellation is observed between runs and during the sleep;
// a run in progress is allowed to finish.
func startTask(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		for ctx.Err() == nil {
			fn(ctx)

			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return t
}

// Name returns the task name used in logs.
func (t *Task) Name() string { return t.name }

// Cancel asks the loop to stop. It does not wait.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the loop has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the loop has returned or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the loop and waits for it.
func (t *Task) Stop(ctx context.Context) error {
	t.Cancel()
	return t.Wait(ctx)
}
