package automation

import (
	"context"
	"fmt"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the rule store: validated scenario CRUD plus execution
// bookkeeping over a Repository.
//
// Scenarios are not cached; their counters change on every run and the
// evaluation loop reads them once per cycle.
type Store struct {
	repo      Repository
	validator *Validator
	logger    Logger
}

// NewStore creates a rule store over repo.
func NewStore(repo Repository, validator *Validator) *Store {
	return &Store{
		repo:      repo,
		validator: validator,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// ListActiveScenarios returns every active scenario ordered by ID.
func (s *Store) ListActiveScenarios(ctx context.Context) ([]Scenario, error) {
	return s.repo.List(ctx, true)
}

// ListScenarios returns all scenarios, including inactive ones.
func (s *Store) ListScenarios(ctx context.Context) ([]Scenario, error) {
	return s.repo.List(ctx, false)
}

// GetScenario retrieves a scenario by ID.
func (s *Store) GetScenario(ctx context.Context, id int64) (*Scenario, error) {
	return s.repo.GetByID(ctx, id)
}

// ScenariosForDevice returns active scenarios whose action targets deviceID.
func (s *Store) ScenariosForDevice(ctx context.Context, deviceID string) ([]Scenario, error) {
	return s.repo.ListForDevice(ctx, deviceID)
}

// CreateScenario validates and persists a new scenario. New scenarios
// are always active.
func (s *Store) CreateScenario(ctx context.Context, sc *Scenario) error {
	sc.IsActive = true
	if err := s.validator.ValidateScenario(sc); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, sc); err != nil {
		return err
	}
	s.logger.Info("scenario created", "id", sc.ID, "name", sc.Name, "trigger", sc.TriggerType)
	return nil
}

// UpdateScenario validates and persists changes to a scenario definition.
func (s *Store) UpdateScenario(ctx context.Context, sc *Scenario) error {
	if err := s.validator.ValidateScenario(sc); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return err
	}
	s.logger.Info("scenario updated", "id", sc.ID, "name", sc.Name)
	return nil
}

// DeleteScenario soft-deletes a scenario.
func (s *Store) DeleteScenario(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("scenario deleted", "id", id)
	return nil
}

// ValidateActionShape reports whether action parameters carry a device_id
// and a known command.
func (s *Store) ValidateActionShape(params map[string]any) bool {
	return ValidActionShape(params)
}

// RecordExecution persists the outcome of one scenario run.
func (s *Store) RecordExecution(ctx context.Context, exec *Execution) error {
	if err := s.repo.RecordExecution(ctx, exec); err != nil {
		return fmt.Errorf("recording execution of scenario %d: %w", exec.ScenarioID, err)
	}
	return nil
}

// ListExecutions returns recent runs of a scenario, newest first.
func (s *Store) ListExecutions(ctx context.Context, scenarioID int64, limit int) ([]Execution, error) {
	return s.repo.ListExecutions(ctx, scenarioID, limit)
}
