package operator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shockzort/tion-core/internal/device"
)

// powerOfTwo waits unit×2^k before attempt k+1.
type powerOfTwo struct {
	unit    time.Duration
	attempt uint
}

func (b *powerOfTwo) NextBackOff() time.Duration {
	b.attempt++
	return b.unit << b.attempt
}

func (b *powerOfTwo) Reset() { b.attempt = 0 }

// Load builds the handle for d and connects it, making up to maxAttempts
// attempts with exponential backoff between them. On success the handle
// replaces any previous handle for the device.
//
// A cancelled ctx aborts the backoff wait and returns ctx.Err() without
// logging a load failure.
func (o *Operator) Load(ctx context.Context, d device.Device, maxAttempts int) (device.Handle, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	h := o.factory(&d)
	attempt := 0

	connect := func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempt++

		ioCtx, cancel := o.ioContext(ctx)
		err := h.Connect(ioCtx)
		cancel()

		o.metrics.ConnectAttempt(d.ID, err == nil)
		if err != nil {
			o.logger.Warn("device connect attempt failed",
				"device_id", d.ID,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err,
			)
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&powerOfTwo{unit: o.backoffUnit}, uint64(maxAttempts-1)),
		ctx,
	)
	notify := func(_ error, wait time.Duration) {
		o.logger.Debug("retrying device connect", "device_id", d.ID, "wait", wait)
	}

	if err := backoff.RetryNotifyWithTimer(connect, policy, notify, o.newTimer()); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Error("device load failed", "device_id", d.ID, "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrLoadFailed, d.ID, attempt, err)
	}

	o.store(d.ID, h)
	o.logger.Info("device loaded", "device_id", d.ID, "kind", h.Kind(), "attempts", attempt)
	return h, nil
}

// Reconnect drops the current handle for id, disconnecting it best-effort,
// and loads the device again from the registry.
func (o *Operator) Reconnect(ctx context.Context, id string) (bool, error) {
	d, err := o.registry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		return false, err
	}

	o.Drop(ctx, id)

	if _, err := o.Load(ctx, *d, o.connectRetries); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the live handle for id.
func (o *Operator) Get(id string) (device.Handle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handles[id]
	return h, ok
}

// All returns a snapshot of the handle map.
func (o *Operator) All() map[string]device.Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]device.Handle, len(o.handles))
	for id, h := range o.handles {
		out[id] = h
	}
	return out
}

// Drop removes the handle for id and disconnects it. Disconnect errors
// are logged and ignored. It reports whether a handle was present.
func (o *Operator) Drop(ctx context.Context, id string) bool {
	h, ok := o.detach(id)
	if !ok {
		return false
	}
	ioCtx, cancel := o.ioContext(ctx)
	defer cancel()
	if err := h.Disconnect(ioCtx); err != nil {
		o.logger.Warn("device disconnect failed", "device_id", id, "error", err)
	}
	return true
}

// detach removes the handle for id without touching the link.
func (o *Operator) detach(id string) (device.Handle, bool) {
	o.mu.Lock()
	h, ok := o.handles[id]
	delete(o.handles, id)
	n := len(o.handles)
	o.mu.Unlock()
	if ok {
		o.metrics.ConnectedDevices(n)
	}
	return h, ok
}

// store puts h under id. A different handle already there is disconnected.
func (o *Operator) store(id string, h device.Handle) {
	o.mu.Lock()
	old, had := o.handles[id]
	o.handles[id] = h
	n := len(o.handles)
	o.mu.Unlock()
	o.metrics.ConnectedDevices(n)

	if had && old != h {
		ctx, cancel := context.WithTimeout(context.Background(), o.ioTimeout)
		defer cancel()
		if err := old.Disconnect(ctx); err != nil {
			o.logger.Warn("replaced handle disconnect failed", "device_id", id, "error", err)
		}
	}
}
