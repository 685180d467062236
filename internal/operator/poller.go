package operator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shockzort/tion-core/internal/device"
)

// PollOnce refreshes the status of every connectable device in turn.
// A device that fails gets an error-flagged status and loses its handle;
// the others are unaffected. Cancellation is checked between devices.
func (o *Operator) PollOnce(ctx context.Context) error {
	devices, err := o.registry.ListConnectable(ctx)
	if err != nil {
		return fmt.Errorf("listing connectable devices: %w", err)
	}

	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.pollDevice(ctx, devices[id])
	}
	return nil
}

// StartPolling runs PollOnce every interval until ctx is cancelled or the
// operator shuts down. A running polling task is stopped first.
func (o *Operator) StartPolling(ctx context.Context, interval time.Duration) *Task {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	o.taskMu.Lock()
	defer o.taskMu.Unlock()

	if o.pollTask != nil {
		o.pollTask.Stop(context.WithoutCancel(ctx)) //nolint:errcheck // waits without deadline
	}
	o.pollTask = startTask(ctx, "poll", interval, func(ctx context.Context) {
		if err := o.PollOnce(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("poll cycle failed", "error", err)
		}
	})
	o.logger.Info("status polling started", "interval", interval)
	return o.pollTask
}

func (o *Operator) pollDevice(ctx context.Context, d device.Device) {
	start := time.Now()
	status, err := o.refresh(ctx, d)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		o.logger.Error("device poll failed", "device_id", d.ID, "error", err)
		status = ErrorStatus(d.ID, err, o.now())
		o.cache.Store(status)
		o.detach(d.ID)
	}

	o.metrics.PollResult(d.ID, err == nil, time.Since(start))
	o.publishStatus(ctx, status)
}

// refresh makes sure d has a connected handle and reads it into the cache.
// A panic in the handle is returned as an error.
func (o *Operator) refresh(ctx context.Context, d device.Device) (status DeviceStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic polling %s: %v", d.ID, r)
		}
	}()

	h, ok := o.Get(d.ID)
	if !ok {
		if h, err = o.Load(ctx, d, o.connectRetries); err != nil {
			return DeviceStatus{}, err
		}
	} else if !h.Connected() {
		// One attempt on the existing handle; a failure drops it and the
		// next cycle loads afresh.
		o.logger.Info("device link down, reconnecting", "device_id", d.ID)
		ioCtx, cancel := o.ioContext(ctx)
		err = h.Connect(ioCtx)
		cancel()
		if err != nil {
			return DeviceStatus{}, fmt.Errorf("reconnecting %s: %w", d.ID, err)
		}
	}

	gen := o.cache.Generation(d.ID)
	ioCtx, cancel := o.ioContext(ctx)
	props, err := h.Get(ioCtx)
	cancel()
	if err != nil {
		return DeviceStatus{}, err
	}

	status = StatusFromProperties(d.ID, props, o.now())
	if !o.cache.StoreIfCurrent(status, gen) {
		o.logger.Debug("discarding status read before a write", "device_id", d.ID)
	}
	return status, nil
}
