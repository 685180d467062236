package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
	"github.com/shockzort/tion-core/internal/infrastructure/config"
	"github.com/shockzort/tion-core/internal/infrastructure/logging"
	"github.com/shockzort/tion-core/internal/operator"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Operator is the device supervision surface the API drives.
type Operator interface {
	DeviceStatus(ctx context.Context, id string, forceRefresh bool) (operator.DeviceStatus, error)
	SetProperty(ctx context.Context, id, property string, value any) (bool, error)
	Reconnect(ctx context.Context, id string) (bool, error)
	ExecuteScenario(ctx context.Context, id int64) (bool, error)
	Get(id string) (device.Handle, bool)
}

// DeviceLister lists registered devices.
type DeviceLister interface {
	ListActiveDevices(ctx context.Context) ([]device.Device, error)
}

// ExecutionLister reads scenario execution history.
type ExecutionLister interface {
	GetScenario(ctx context.Context, id int64) (*automation.Scenario, error)
	ListExecutions(ctx context.Context, scenarioID int64, limit int) ([]automation.Execution, error)
}

// HealthChecker is implemented by the database and MQTT clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Operator  Operator
	Devices   DeviceLister
	Scenarios ExecutionLister
	Metrics   http.Handler
	// Checks are run by /healthz, keyed by component name.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the ops HTTP server: health, metrics and a few device and
// scenario actions.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	operator  Operator
	devices   DeviceLister
	scenarios ExecutionLister
	metrics   http.Handler
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Operator == nil {
		return nil, fmt.Errorf("operator is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		operator:  deps.Operator,
		devices:   deps.Devices,
		scenarios: deps.Scenarios,
		metrics:   metrics,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
