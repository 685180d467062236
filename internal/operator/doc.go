// Package operator supervises the breezer fleet.
//
// An Operator owns one device.Handle per loaded device and three duties:
//
//   - Connection management: Load connects a handle with exponential
//     backoff (unit×2^k before attempt k+1), paced by a shared rate
//     limiter. Reconnect and Drop replace or remove handles.
//   - Status polling: PollOnce reads every connectable device into the
//     StatusCache. A failing device gets an error-flagged status and
//     loses its handle; the next cycle loads it again.
//   - Automation: RunScenariosOnce evaluates every active scenario and
//     executes the ones whose trigger holds.
//
// Command setters (SetFanSpeed, SetMode, ...) validate their argument
// before any device I/O. Writes from setters and scenarios pass through a
// per-device circuit breaker, and a successful write invalidates the
// device's cache entry.
//
// # Usage
//
//	op := operator.New(registry, store, device.NewFactory(transport),
//	    operator.WithLogger(log),
//	    operator.WithLocation(cfg.Location()),
//	)
//	if err := op.Initialize(ctx); err != nil {
//	    return err
//	}
//	op.StartPolling(ctx, cfg.Operator.PollPeriod())
//	op.StartScenarios(ctx, cfg.Operator.ScenarioPeriod())
//	defer op.Shutdown(context.Background())
package operator
