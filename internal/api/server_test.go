package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
	"github.com/shockzort/tion-core/internal/infrastructure/config"
	"github.com/shockzort/tion-core/internal/infrastructure/logging"
	"github.com/shockzort/tion-core/internal/operator"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type fakeHandle struct {
	id        string
	connected bool
}

func (h *fakeHandle) DeviceID() string                 { return h.id }
func (h *fakeHandle) Kind() device.Kind                { return device.KindS3 }
func (h *fakeHandle) Connect(context.Context) error    { return nil }
func (h *fakeHandle) Disconnect(context.Context) error { return nil }
func (h *fakeHandle) Connected() bool                  { return h.connected }
func (h *fakeHandle) Get(context.Context) (device.Properties, error) {
	return device.Properties{}, nil
}
func (h *fakeHandle) Set(context.Context, device.Properties) (bool, error) { return true, nil }

type fakeOperator struct {
	handles    map[string]device.Handle
	statuses   map[string]operator.DeviceStatus
	statusErr  error
	setResult  bool
	setErr     error
	reconnErr  error
	execResult bool
	execErr    error

	lastProperty string
	lastValue    any
	lastRefresh  bool
}

func (f *fakeOperator) DeviceStatus(_ context.Context, id string, force bool) (operator.DeviceStatus, error) {
	f.lastRefresh = force
	if f.statusErr != nil {
		return operator.DeviceStatus{}, f.statusErr
	}
	s, ok := f.statuses[id]
	if !ok {
		return operator.DeviceStatus{}, operator.ErrNotLoaded
	}
	return s, nil
}

func (f *fakeOperator) SetProperty(_ context.Context, _ string, property string, value any) (bool, error) {
	f.lastProperty = property
	f.lastValue = value
	return f.setResult, f.setErr
}

func (f *fakeOperator) Reconnect(context.Context, string) (bool, error) {
	return f.reconnErr == nil, f.reconnErr
}

func (f *fakeOperator) ExecuteScenario(context.Context, int64) (bool, error) {
	return f.execResult, f.execErr
}

func (f *fakeOperator) Get(id string) (device.Handle, bool) {
	h, ok := f.handles[id]
	return h, ok
}

type fakeDevices struct {
	devices []device.Device
	err     error
}

func (f *fakeDevices) ListActiveDevices(context.Context) ([]device.Device, error) {
	return f.devices, f.err
}

type fakeScenarios struct {
	scenarios  map[int64]*automation.Scenario
	executions []automation.Execution
	lastLimit  int
}

func (f *fakeScenarios) GetScenario(_ context.Context, id int64) (*automation.Scenario, error) {
	s, ok := f.scenarios[id]
	if !ok {
		return nil, automation.ErrScenarioNotFound
	}
	return s, nil
}

func (f *fakeScenarios) ListExecutions(_ context.Context, _ int64, limit int) ([]automation.Execution, error) {
	f.lastLimit = limit
	return f.executions, nil
}

type checkFunc func(context.Context) error

func (c checkFunc) HealthCheck(ctx context.Context) error { return c(ctx) }

// ─── Helpers ───────────────────────────────────────────────────────

type testDeps struct {
	op        *fakeOperator
	devices   *fakeDevices
	scenarios *fakeScenarios
	checks    map[string]HealthChecker
}

func newTestDeps() *testDeps {
	return &testDeps{
		op: &fakeOperator{
			handles:  map[string]device.Handle{},
			statuses: map[string]operator.DeviceStatus{},
		},
		devices:   &fakeDevices{},
		scenarios: &fakeScenarios{scenarios: map[int64]*automation.Scenario{}},
		checks:    map[string]HealthChecker{},
	}
}

func testServer(t *testing.T, d *testDeps) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:    log,
		Operator:  d.op,
		Devices:   d.devices,
		Scenarios: d.scenarios,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "tion_polls_total 1\n")
		}),
		Checks:  d.checks,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

// ─── Server ────────────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if _, err := New(Deps{Operator: &fakeOperator{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without operator should fail")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := testServer(t, newTestDeps())

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("X-Request-ID = %q, want client value echoed", got)
	}
}

func TestWriteOperatorError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback int
		want     int
	}{
		{"validation", fmt.Errorf("%w: bad", operator.ErrValidation), http.StatusInternalServerError, http.StatusUnprocessableEntity},
		{"device not found", operator.ErrDeviceNotFound, http.StatusBadGateway, http.StatusNotFound},
		{"scenario not found", operator.ErrScenarioNotFound, http.StatusInternalServerError, http.StatusNotFound},
		{"not loaded", fmt.Errorf("wrapped: %w", operator.ErrNotLoaded), http.StatusBadGateway, http.StatusConflict},
		{"device failure", errors.New("gatt timeout"), http.StatusBadGateway, http.StatusBadGateway},
		{"internal failure", errors.New("database is locked"), http.StatusInternalServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeOperatorError(rec, tt.err, tt.fallback)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantState  string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]HealthChecker{"database": checkFunc(func(context.Context) error { return nil })},
			http.StatusOK, "ok",
		},
		{
			"mqtt down",
			map[string]HealthChecker{
				"database": checkFunc(func(context.Context) error { return nil }),
				"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
			},
			http.StatusServiceUnavailable, "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.checks = tt.checks
			srv := testServer(t, d)

			rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["status"] != tt.wantState {
				t.Errorf("status field = %v, want %q", body["status"], tt.wantState)
			}
			if body["version"] != "test" {
				t.Errorf("version = %v, want test", body["version"])
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, newTestDeps())

	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tion_polls_total") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, newTestDeps())
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	d := newTestDeps()
	d.devices.devices = []device.Device{
		{ID: "AA:BB:CC:DD:EE:01", Name: "Bedroom", Kind: device.KindS3, IsActive: true, IsPaired: true},
		{ID: "AA:BB:CC:DD:EE:02", Name: "Office", Kind: device.KindLite, IsActive: true},
	}
	d.op.handles["AA:BB:CC:DD:EE:01"] = &fakeHandle{id: "AA:BB:CC:DD:EE:01", connected: true}
	srv := testServer(t, d)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []deviceSummary `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if !body.Devices[0].Loaded || !body.Devices[0].Connected {
		t.Errorf("first device = %+v, want loaded and connected", body.Devices[0])
	}
	if body.Devices[1].Loaded {
		t.Errorf("second device = %+v, want not loaded", body.Devices[1])
	}
}

func TestListDevices_RepositoryError(t *testing.T) {
	d := newTestDeps()
	d.devices.err = errors.New("disk I/O error")
	srv := testServer(t, d)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetDeviceStatus(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		statusErr   error
		wantStatus  int
		wantRefresh bool
	}{
		{"cached", "/api/v1/devices/AA:BB:CC:DD:EE:01/status", nil, http.StatusOK, false},
		{"refresh", "/api/v1/devices/AA:BB:CC:DD:EE:01/status?refresh=true", nil, http.StatusOK, true},
		{"not loaded", "/api/v1/devices/AA:BB:CC:DD:EE:09/status", nil, http.StatusConflict, false},
		{"read failure", "/api/v1/devices/AA:BB:CC:DD:EE:01/status", errors.New("gatt timeout"), http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.op.statuses["AA:BB:CC:DD:EE:01"] = operator.DeviceStatus{
				DeviceID:    "AA:BB:CC:DD:EE:01",
				State:       "on",
				FanSpeed:    3,
				LastUpdated: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
			}
			d.op.statusErr = tt.statusErr
			srv := testServer(t, d)

			rec := doRequest(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if d.op.lastRefresh != tt.wantRefresh {
				t.Errorf("forceRefresh = %v, want %v", d.op.lastRefresh, tt.wantRefresh)
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeBody(t, rec)
				if body["state"] != "on" {
					t.Errorf("state = %v, want on", body["state"])
				}
			}
		})
	}
}

func TestDeviceCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setResult  bool
		setErr     error
		wantStatus int
	}{
		{"applied", `{"property":"fan_speed","value":3}`, true, nil, http.StatusOK},
		{"invalid json", `{`, false, nil, http.StatusBadRequest},
		{"missing property", `{"value":3}`, false, nil, http.StatusBadRequest},
		{"validation", `{"property":"fan_speed","value":9}`, false, fmt.Errorf("%w: fan speed 9", operator.ErrValidation), http.StatusUnprocessableEntity},
		{"not loaded", `{"property":"state","value":"on"}`, false, operator.ErrNotLoaded, http.StatusConflict},
		{"declined", `{"property":"state","value":"on"}`, false, nil, http.StatusBadGateway},
		{"unexpected", `{"property":"state","value":"on"}`, false, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.op.setResult = tt.setResult
			d.op.setErr = tt.setErr
			srv := testServer(t, d)

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:01/commands", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestDeviceCommand_PassesValue(t *testing.T) {
	d := newTestDeps()
	d.op.setResult = true
	srv := testServer(t, d)

	doRequest(t, srv, http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:01/commands", `{"property":"mode","value":"recirculation"}`)
	if d.op.lastProperty != "mode" || d.op.lastValue != "recirculation" {
		t.Errorf("SetProperty got %q=%v", d.op.lastProperty, d.op.lastValue)
	}
}

func TestReconnectDevice(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"unknown device", fmt.Errorf("%w: x", operator.ErrDeviceNotFound), http.StatusNotFound},
		{"connect failed", errors.New("out of range"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.op.reconnErr = tt.err
			srv := testServer(t, d)

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:01/reconnect", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// ─── Scenarios ─────────────────────────────────────────────────────

func TestExecuteScenario(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		result      bool
		err         error
		wantStatus  int
		wantSuccess bool
	}{
		{"executed", "/api/v1/scenarios/1/execute", true, nil, http.StatusOK, true},
		{"declined", "/api/v1/scenarios/1/execute", false, nil, http.StatusOK, false},
		{"bad id", "/api/v1/scenarios/abc/execute", false, nil, http.StatusBadRequest, false},
		{"not found", "/api/v1/scenarios/7/execute", false, operator.ErrScenarioNotFound, http.StatusNotFound, false},
		{"device not loaded", "/api/v1/scenarios/1/execute", false, operator.ErrNotLoaded, http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.op.execResult = tt.result
			d.op.execErr = tt.err
			srv := testServer(t, d)

			rec := doRequest(t, srv, http.MethodPost, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeBody(t, rec)
				if body["success"] != tt.wantSuccess {
					t.Errorf("success = %v, want %v", body["success"], tt.wantSuccess)
				}
			}
		})
	}
}

func TestListExecutions(t *testing.T) {
	d := newTestDeps()
	d.scenarios.scenarios[1] = &automation.Scenario{ID: 1, Name: "Morning"}
	d.scenarios.executions = []automation.Execution{
		{ScenarioID: 1, DeviceID: "AA:BB:CC:DD:EE:01", Command: automation.CmdTurnOn, Success: true},
	}
	srv := testServer(t, d)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLimit  int
	}{
		{"default limit", "/api/v1/scenarios/1/executions", http.StatusOK, defaultExecutionLimit},
		{"explicit limit", "/api/v1/scenarios/1/executions?limit=5", http.StatusOK, 5},
		{"limit too large", "/api/v1/scenarios/1/executions?limit=5000", http.StatusBadRequest, 0},
		{"unknown scenario", "/api/v1/scenarios/2/executions", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.scenarios.lastLimit = 0
			rec := doRequest(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if d.scenarios.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", d.scenarios.lastLimit, tt.wantLimit)
			}
		})
	}
}
