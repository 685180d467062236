package operator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shockzort/tion-core/internal/automation"
)

// ShouldExecute reports whether a scenario's trigger currently holds.
// Every malformed or unknown case evaluates to false.
func (o *Operator) ShouldExecute(ctx context.Context, sc *automation.Scenario) bool {
	if sc == nil || !sc.IsActive {
		return false
	}

	switch sc.TriggerType {
	case automation.TriggerTime:
		w, err := automation.ParseTimeWindow(sc.TriggerParams)
		if err != nil {
			o.logger.Warn("bad time trigger", "scenario_id", sc.ID, "error", err)
			return false
		}
		return w.Contains(o.now().In(o.loc))

	case automation.TriggerSensor:
		t, err := automation.ParseSensorTrigger(sc.TriggerParams)
		if err != nil {
			o.logger.Warn("bad sensor trigger", "scenario_id", sc.ID, "error", err)
			return false
		}
		status, err := o.DeviceStatus(ctx, t.DeviceID, false)
		if err != nil || !status.OK() {
			return false
		}
		value, ok := status.Numeric(t.Sensor)
		if !ok {
			return false
		}
		return t.Comparison.Apply(value, t.Threshold)
	}

	return false
}

// ExecuteScenario runs a scenario's action once, regardless of its trigger.
//
// It returns false with no error when the action is malformed or the
// device declined the write. The execution is recorded whenever the
// device was addressed, including capability mismatches.
func (o *Operator) ExecuteScenario(ctx context.Context, id int64) (bool, error) {
	o.execMu.Lock()
	defer o.execMu.Unlock()

	sc, err := o.rules.GetScenario(ctx, id)
	if err != nil {
		if errors.Is(err, automation.ErrScenarioNotFound) {
			return false, fmt.Errorf("%w: %d", ErrScenarioNotFound, id)
		}
		return false, err
	}

	if !o.rules.ValidateActionShape(sc.ActionParams) {
		o.logger.Warn("scenario action is malformed", "scenario_id", id)
		return false, nil
	}

	deviceID := sc.TargetDevice()
	cmd := sc.ActionCommand()

	h, ok := o.Get(deviceID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotLoaded, deviceID)
	}

	exec := automation.Execution{
		ScenarioID: id,
		DeviceID:   deviceID,
		Command:    cmd,
	}

	if capability, needed := cmd.RequiredCapability(); needed {
		caps, err := o.registry.CapabilitiesFor(ctx, deviceID)
		if err != nil || !caps.Has(capability) {
			exec.Detail = fmt.Sprintf("device lacks %s", capability)
			o.logger.Warn("scenario command not supported by device",
				"scenario_id", id, "device_id", deviceID, "command", cmd)
			o.finishExecution(ctx, exec)
			return false, nil
		}
	}

	props := automation.CommandProperties(sc.ActionParams)
	ok, err = o.write(ctx, deviceID, h, props)
	if err != nil {
		exec.Detail = err.Error()
		o.logger.Error("scenario action failed", "scenario_id", id, "device_id", deviceID, "error", err)
	} else if ok {
		o.cache.Invalidate(deviceID)
	}
	exec.Success = ok

	o.finishExecution(ctx, exec)
	o.logger.Info("scenario executed", "scenario_id", id, "device_id", deviceID, "command", cmd, "success", ok)
	return ok, nil
}

// RunScenariosOnce evaluates every active scenario and executes those whose
// trigger holds. A failing scenario does not affect the others.
func (o *Operator) RunScenariosOnce(ctx context.Context) error {
	scenarios, err := o.rules.ListActiveScenarios(ctx)
	if err != nil {
		return fmt.Errorf("listing scenarios: %w", err)
	}

	for i := range scenarios {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.runScenario(ctx, &scenarios[i])
	}
	return nil
}

// StartScenarios runs RunScenariosOnce every interval. A running scenario
// task is stopped first.
func (o *Operator) StartScenarios(ctx context.Context, interval time.Duration) *Task {
	if interval <= 0 {
		interval = DefaultScenarioInterval
	}

	o.taskMu.Lock()
	defer o.taskMu.Unlock()

	if o.scenarioTask != nil {
		o.scenarioTask.Stop(context.WithoutCancel(ctx)) //nolint:errcheck // waits without deadline
	}
	o.scenarioTask = startTask(ctx, "scenarios", interval, func(ctx context.Context) {
		if err := o.RunScenariosOnce(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("scenario cycle failed", "error", err)
		}
	})
	o.logger.Info("scenario evaluation started", "interval", interval)
	return o.scenarioTask
}

func (o *Operator) runScenario(ctx context.Context, sc *automation.Scenario) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scenario panicked", "scenario_id", sc.ID, "panic", r)
		}
	}()

	if !o.ShouldExecute(ctx, sc) {
		return
	}
	if _, err := o.ExecuteScenario(ctx, sc.ID); err != nil {
		o.logger.Error("scenario execution failed", "scenario_id", sc.ID, "error", err)
	}
}

// finishExecution records, publishes and counts an execution. Recording
// failures are logged only.
func (o *Operator) finishExecution(ctx context.Context, exec automation.Execution) {
	exec.ExecutedAt = o.now().UTC()

	rctx, cancel := o.ioContext(ctx)
	defer cancel()
	if err := o.rules.RecordExecution(rctx, &exec); err != nil {
		o.logger.Error("recording scenario execution failed", "scenario_id", exec.ScenarioID, "error", err)
	}

	o.metrics.ScenarioExecuted(exec.ScenarioID, exec.Success)
	o.publishExecution(ctx, exec)
}
