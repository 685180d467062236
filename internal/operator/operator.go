package operator

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
)

// Default timings.
const (
	DefaultPollInterval     = 10 * time.Second
	DefaultScenarioInterval = 60 * time.Second
	DefaultConnectRetries   = 3
	DefaultBackoffUnit      = time.Second
	DefaultIOTimeout        = 15 * time.Second
)

// Logger defines the logging interface used by the Operator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the read side of the device registry.
type Registry interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListActiveDevices(ctx context.Context) ([]device.Device, error)
	ListConnectable(ctx context.Context) (map[string]device.Device, error)
	CapabilitiesFor(ctx context.Context, id string) (device.Capabilities, error)
}

// RuleStore is the part of the automation store the operator needs.
type RuleStore interface {
	ListActiveScenarios(ctx context.Context) ([]automation.Scenario, error)
	GetScenario(ctx context.Context, id int64) (*automation.Scenario, error)
	ValidateActionShape(params map[string]any) bool
	RecordExecution(ctx context.Context, exec *automation.Execution) error
}

// Sink receives every polled status and every scenario execution.
// Sink errors are logged and never affect polling or execution.
type Sink interface {
	PublishStatus(ctx context.Context, status DeviceStatus) error
	PublishExecution(ctx context.Context, exec automation.Execution) error
}

// Metrics receives operator counters.
type Metrics interface {
	ConnectAttempt(deviceID string, ok bool)
	PollResult(deviceID string, ok bool, took time.Duration)
	ScenarioExecuted(scenarioID int64, ok bool)
	CommandResult(property string, ok bool)
	ConnectedDevices(n int)
	BreakerState(deviceID string, state string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectAttempt(string, bool)            {}
func (noopMetrics) PollResult(string, bool, time.Duration) {}
func (noopMetrics) ScenarioExecuted(int64, bool)           {}
func (noopMetrics) CommandResult(string, bool)             {}
func (noopMetrics) ConnectedDevices(int)                   {}
func (noopMetrics) BreakerState(string, string)            {}

// BreakerSettings configures the per-device write circuit breaker.
type BreakerSettings struct {
	Failures    int           // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before a trial write
	Interval    time.Duration // counter reset period while closed, 0 = never
}

// Operator supervises device handles, polls status and runs scenarios.
//
// The handle map, status cache and breaker map are each guarded by their
// own lock. Scenario executions are serialized.
type Operator struct {
	registry Registry
	rules    RuleStore
	factory  device.Factory

	logger  Logger
	metrics Metrics
	sinks   []Sink
	now     func() time.Time
	loc     *time.Location

	connectRetries int
	backoffUnit    time.Duration
	ioTimeout      time.Duration
	limiter        *rate.Limiter
	breakerCfg     BreakerSettings
	newTimer       func() backoff.Timer

	mu      sync.RWMutex
	handles map[string]device.Handle

	cache *StatusCache

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker

	execMu sync.Mutex

	taskMu       sync.Mutex
	pollTask     *Task
	scenarioTask *Task
}

// Option configures an Operator.
type Option func(*Operator)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *Operator) { o.logger = l }
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(o *Operator) { o.metrics = m }
}

// WithSinks adds status and execution sinks.
func WithSinks(sinks ...Sink) Option {
	return func(o *Operator) { o.sinks = append(o.sinks, sinks...) }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Operator) { o.now = now }
}

// WithLocation sets the time zone used by time-window triggers.
func WithLocation(loc *time.Location) Option {
	return func(o *Operator) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithConnectRetries sets the default number of connect attempts.
func WithConnectRetries(n int) Option {
	return func(o *Operator) {
		if n > 0 {
			o.connectRetries = n
		}
	}
}

// WithBackoffUnit sets the base of the exponential connect backoff.
func WithBackoffUnit(d time.Duration) Option {
	return func(o *Operator) { o.backoffUnit = d }
}

// WithIOTimeout bounds each device call.
func WithIOTimeout(d time.Duration) Option {
	return func(o *Operator) {
		if d > 0 {
			o.ioTimeout = d
		}
	}
}

// WithConnectRate limits connect attempts per second across all devices.
// Zero or less disables the limit.
func WithConnectRate(perSecond float64) Option {
	return func(o *Operator) {
		if perSecond <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithBreaker configures the per-device write breaker.
func WithBreaker(s BreakerSettings) Option {
	return func(o *Operator) {
		if s.Failures > 0 {
			o.breakerCfg = s
		}
	}
}

// New creates an Operator. Call Initialize to load devices.
func New(registry Registry, rules RuleStore, factory device.Factory, opts ...Option) *Operator {
	o := &Operator{
		registry:       registry,
		rules:          rules,
		factory:        factory,
		logger:         noopLogger{},
		metrics:        noopMetrics{},
		now:            time.Now,
		loc:            time.UTC,
		connectRetries: DefaultConnectRetries,
		backoffUnit:    DefaultBackoffUnit,
		ioTimeout:      DefaultIOTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		breakerCfg:     BreakerSettings{Failures: 5, OpenTimeout: time.Minute},
		newTimer:       func() backoff.Timer { return nil },
		handles:        make(map[string]device.Handle),
		cache:          NewStatusCache(),
		breakers:       make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cache exposes the status cache.
func (o *Operator) Cache() *StatusCache {
	return o.cache
}

// Initialize loads every active device. Load failures are logged and do
// not stop the others; the poller retries them.
func (o *Operator) Initialize(ctx context.Context) error {
	devices, err := o.registry.ListActiveDevices(ctx)
	if err != nil {
		return err
	}

	loaded := 0
	for i := range devices {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := o.Load(ctx, devices[i], o.connectRetries); err != nil {
			o.logger.Error("device load failed during initialize", "device_id", devices[i].ID, "error", err)
			continue
		}
		loaded++
	}

	o.logger.Info("operator initialized", "devices", len(devices), "loaded", loaded)
	return nil
}

// DeviceStatus returns the cached status of a device, or reads it through
// the handle when forced or when nothing is cached.
func (o *Operator) DeviceStatus(ctx context.Context, id string, forceRefresh bool) (DeviceStatus, error) {
	if !forceRefresh {
		if s, ok := o.cache.Lookup(id); ok {
			return s, nil
		}
	}

	h, ok := o.Get(id)
	if !ok {
		return DeviceStatus{}, ErrNotLoaded
	}

	gen := o.cache.Generation(id)
	ioCtx, cancel := o.ioContext(ctx)
	props, err := h.Get(ioCtx)
	cancel()
	if err != nil {
		return DeviceStatus{}, err
	}

	s := StatusFromProperties(id, props, o.now())
	o.cache.StoreIfCurrent(s, gen)
	return s, nil
}

// Shutdown stops both background tasks, then disconnects and removes
// every handle. Disconnect errors are logged; the handle map is always
// left empty.
func (o *Operator) Shutdown(ctx context.Context) error {
	o.taskMu.Lock()
	tasks := []*Task{o.pollTask, o.scenarioTask}
	o.pollTask, o.scenarioTask = nil, nil
	o.taskMu.Unlock()

	var waitErr error
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if err := t.Stop(ctx); err != nil {
			o.logger.Warn("task did not stop in time", "task", t.Name(), "error", err)
			waitErr = err
		}
	}

	o.mu.Lock()
	handles := o.handles
	o.handles = make(map[string]device.Handle)
	o.mu.Unlock()
	o.metrics.ConnectedDevices(0)

	for id, h := range handles {
		dctx, cancel := o.ioContext(ctx)
		if err := h.Disconnect(dctx); err != nil {
			o.logger.Error("disconnect failed during shutdown", "device_id", id, "error", err)
		}
		cancel()
	}

	o.logger.Info("operator stopped", "disconnected", len(handles))
	return waitErr
}

// ioContext derives the context for a single device call. It survives
// cancellation of the calling task so a started call completes, and is
// bounded by the I/O timeout.
func (o *Operator) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.ioTimeout)
}

func (o *Operator) publishStatus(ctx context.Context, s DeviceStatus) {
	for _, sink := range o.sinks {
		if err := sink.PublishStatus(ctx, s); err != nil {
			o.logger.Warn("status sink failed", "device_id", s.DeviceID, "error", err)
		}
	}
}

func (o *Operator) publishExecution(ctx context.Context, e automation.Execution) {
	for _, sink := range o.sinks {
		if err := sink.PublishExecution(ctx, e); err != nil {
			o.logger.Warn("execution sink failed", "scenario_id", e.ScenarioID, "error", err)
		}
	}
}
