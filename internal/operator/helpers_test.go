package operator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
)

// ─── Fake handle ───────────────────────────────────────────────────

type fakeHandle struct {
	mu            sync.Mutex
	id            string
	kind          device.Kind
	connected     bool
	connectErrs   []error // consumed one per Connect; nil entries succeed
	connectErr    error   // used once connectErrs is empty
	disconnectErr error
	props         device.Properties
	getErr        error
	getPanic      bool
	setErr        error
	setResult     bool

	connects    int
	disconnects int
	gets        int
	sets        []device.Properties
}

func newFakeHandle(id string, kind device.Kind) *fakeHandle {
	return &fakeHandle{
		id:        id,
		kind:      kind,
		props:     device.Properties{device.PropState: "on"},
		setResult: true,
	}
}

func (h *fakeHandle) DeviceID() string  { return h.id }
func (h *fakeHandle) Kind() device.Kind { return h.kind }

func (h *fakeHandle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHandle) setConnected(v bool) {
	h.mu.Lock()
	h.connected = v
	h.mu.Unlock()
}

func (h *fakeHandle) Connect(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
	err := h.connectErr
	if len(h.connectErrs) > 0 {
		err = h.connectErrs[0]
		h.connectErrs = h.connectErrs[1:]
	}
	h.connected = err == nil
	return err
}

func (h *fakeHandle) Disconnect(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
	h.connected = false
	return h.disconnectErr
}

func (h *fakeHandle) Get(_ context.Context) (device.Properties, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gets++
	if h.getPanic {
		panic("radio on fire")
	}
	if h.getErr != nil {
		return nil, h.getErr
	}
	out := make(device.Properties, len(h.props))
	for k, v := range h.props {
		out[k] = v
	}
	return out, nil
}

func (h *fakeHandle) Set(_ context.Context, props device.Properties) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sets = append(h.sets, props)
	if h.setErr != nil {
		return false, h.setErr
	}
	return h.setResult, nil
}

func (h *fakeHandle) counts() (connects, disconnects, gets, sets int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.disconnects, h.gets, len(h.sets)
}

// ─── Fake registry ─────────────────────────────────────────────────

type fakeRegistry struct {
	mu      sync.Mutex
	devices map[string]device.Device
	handles map[string]*fakeHandle
}

func newFakeRegistry(devices ...device.Device) *fakeRegistry {
	r := &fakeRegistry{
		devices: make(map[string]device.Device),
		handles: make(map[string]*fakeHandle),
	}
	for _, d := range devices {
		r.devices[d.ID] = d
		r.handles[d.ID] = newFakeHandle(d.ID, d.Kind)
	}
	return r
}

// factory hands out the pre-built fake for each device.
func (r *fakeRegistry) factory(d *device.Device) device.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[d.ID]
	if !ok {
		h = newFakeHandle(d.ID, d.Kind)
		r.handles[d.ID] = h
	}
	return h
}

func (r *fakeRegistry) handle(id string) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

func (r *fakeRegistry) GetDevice(_ context.Context, id string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return &d, nil
}

func (r *fakeRegistry) ListActiveDevices(_ context.Context) ([]device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []device.Device
	for _, d := range r.devices {
		if d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRegistry) ListConnectable(_ context.Context) (map[string]device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]device.Device)
	for id, d := range r.devices {
		if d.IsActive && d.IsPaired {
			out[id] = d
		}
	}
	return out, nil
}

func (r *fakeRegistry) CapabilitiesFor(ctx context.Context, id string) (device.Capabilities, error) {
	d, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return device.CapabilitiesOf(d.Kind), nil
}

func testDevice(id string, kind device.Kind) device.Device {
	return device.Device{
		ID:       id,
		Name:     "Breezer " + id,
		Kind:     kind,
		Address:  id,
		IsActive: true,
		IsPaired: true,
	}
}

// ─── Fake rule store ───────────────────────────────────────────────

type fakeRules struct {
	mu         sync.Mutex
	scenarios  map[int64]*automation.Scenario
	executions []automation.Execution
	recordErr  error
}

func newFakeRules(scenarios ...*automation.Scenario) *fakeRules {
	r := &fakeRules{scenarios: make(map[int64]*automation.Scenario)}
	for _, s := range scenarios {
		r.scenarios[s.ID] = s
	}
	return r
}

func (r *fakeRules) ListActiveScenarios(_ context.Context) ([]automation.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []automation.Scenario
	for _, s := range r.scenarios {
		if s.IsActive {
			out = append(out, *s.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRules) GetScenario(_ context.Context, id int64) (*automation.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scenarios[id]
	if !ok {
		return nil, automation.ErrScenarioNotFound
	}
	return s.DeepCopy(), nil
}

func (r *fakeRules) ValidateActionShape(params map[string]any) bool {
	return automation.ValidActionShape(params)
}

func (r *fakeRules) RecordExecution(_ context.Context, exec *automation.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	r.executions = append(r.executions, *exec)
	return nil
}

func (r *fakeRules) recorded() []automation.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]automation.Execution(nil), r.executions...)
}

func actionScenario(id int64, deviceID string, cmd automation.Command, value any) *automation.Scenario {
	action := map[string]any{
		automation.ParamDeviceID: deviceID,
		automation.ParamCommand:  string(cmd),
	}
	if value != nil {
		action[automation.ParamValue] = value
	}
	return &automation.Scenario{
		ID:            id,
		Name:          "rule",
		TriggerType:   automation.TriggerTime,
		TriggerParams: map[string]any{"start": "00:00", "end": "23:59"},
		ActionParams:  action,
		IsActive:      true,
	}
}

// ─── Fake sink ─────────────────────────────────────────────────────

type recordingSink struct {
	mu         sync.Mutex
	statuses   []DeviceStatus
	executions []automation.Execution
	err        error
}

func (s *recordingSink) PublishStatus(_ context.Context, st DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
	return s.err
}

func (s *recordingSink) PublishExecution(_ context.Context, e automation.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, e)
	return s.err
}

// ─── Fake backoff timer ────────────────────────────────────────────

// recordingTimer fires immediately and records each requested wait.
type recordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time

	// onStart, when set, runs instead of firing.
	onStart func()
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	hook := t.onStart
	t.mu.Unlock()
	if hook != nil {
		hook()
		return
	}
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func (t *recordingTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// ─── Builders ──────────────────────────────────────────────────────

func newTestOperator(t *testing.T, reg *fakeRegistry, rules *fakeRules, opts ...Option) (*Operator, *recordingTimer) {
	t.Helper()
	if rules == nil {
		rules = newFakeRules()
	}
	timer := newRecordingTimer()
	op := New(reg, rules, reg.factory, opts...)
	op.newTimer = func() backoff.Timer { return timer }
	t.Cleanup(func() {
		op.Shutdown(context.Background()) //nolint:errcheck // test cleanup
	})
	return op, timer
}

func mustLoad(t *testing.T, op *Operator, d device.Device) {
	t.Helper()
	if _, err := op.Load(context.Background(), d, 1); err != nil {
		t.Fatalf("Load(%s) error = %v", d.ID, err)
	}
}

var errRadio = errors.New("radio: link lost")
