package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines scenario persistence. Deletion is soft.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Scenario, error)
	List(ctx context.Context, activeOnly bool) ([]Scenario, error)
	// ListForDevice returns active scenarios whose action targets deviceID.
	ListForDevice(ctx context.Context, deviceID string) ([]Scenario, error)
	// Create inserts the scenario and assigns its ID.
	Create(ctx context.Context, s *Scenario) error
	Update(ctx context.Context, s *Scenario) error
	Deactivate(ctx context.Context, id int64) error

	// RecordExecution updates the scenario's counters and appends a
	// history row in one transaction. An empty exec.ID is assigned.
	RecordExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, scenarioID int64, limit int) ([]Execution, error)
}

const scenarioColumns = `id, name, trigger_type, trigger_params, action_params, is_active,
			last_executed, execution_count, last_status, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GetByID retrieves a scenario by ID, active or not.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Scenario, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id)
	s, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScenarioNotFound
		}
		return nil, fmt.Errorf("querying scenario by id: %w", err)
	}
	return s, nil
}

// List retrieves scenarios ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context, activeOnly bool) ([]Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`
	return r.queryScenarios(ctx, query)
}

// ListForDevice retrieves active scenarios acting on a device.
func (r *SQLiteRepository) ListForDevice(ctx context.Context, deviceID string) ([]Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios
		WHERE is_active = 1 AND json_extract(action_params, '$.device_id') = ?
		ORDER BY id`
	return r.queryScenarios(ctx, query, deviceID)
}

// Create inserts a new scenario.
func (r *SQLiteRepository) Create(ctx context.Context, s *Scenario) error {
	triggerJSON, actionJSON, err := marshalParams(s)
	if err != nil {
		return err
	}

	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO scenarios (name, trigger_type, trigger_params, action_params, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Name, string(s.TriggerType), triggerJSON, actionJSON, boolToInt(s.IsActive),
		s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting scenario: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading scenario id: %w", err)
	}
	s.ID = id
	return nil
}

// Update modifies the definition of a scenario. Execution counters are
// left untouched.
func (r *SQLiteRepository) Update(ctx context.Context, s *Scenario) error {
	triggerJSON, actionJSON, err := marshalParams(s)
	if err != nil {
		return err
	}
	s.UpdatedAt = r.now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE scenarios SET
			name = ?, trigger_type = ?, trigger_params = ?, action_params = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, string(s.TriggerType), triggerJSON, actionJSON,
		boolToInt(s.IsActive), s.UpdatedAt.Format(time.RFC3339), s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating scenario: %w", err)
	}
	return expectOneRow(result)
}

// Deactivate soft-deletes a scenario.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scenarios SET is_active = 0, updated_at = ? WHERE id = ?`,
		r.now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating scenario: %w", err)
	}
	return expectOneRow(result)
}

// RecordExecution stamps last_executed, bumps execution_count and sets
// last_status in a single statement, then appends the history row.
func (r *SQLiteRepository) RecordExecution(ctx context.Context, exec *Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = r.now()
	}
	at := exec.ExecutedAt.UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
		UPDATE scenarios SET
			last_executed = ?, execution_count = execution_count + 1, last_status = ?
		WHERE id = ?`,
		at, boolToInt(exec.Success), exec.ScenarioID,
	)
	if err != nil {
		return fmt.Errorf("updating scenario counters: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenario_executions (id, scenario_id, device_id, command, executed_at, success, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.ScenarioID, exec.DeviceID, string(exec.Command), at,
		boolToInt(exec.Success), nullableString(exec.Detail),
	); err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves recent executions for a scenario, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, scenarioID int64, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scenario_id, device_id, command, executed_at, success, detail
		FROM scenario_executions
		WHERE scenario_id = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?`, scenarioID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		var command, executedAt string
		var success int
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.ScenarioID, &e.DeviceID, &command, &executedAt, &success, &detail); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		e.Command = Command(command)
		e.Success = success != 0
		e.Detail = detail.String
		e.ExecutedAt, _ = time.Parse(time.RFC3339, executedAt) //nolint:errcheck // Format is controlled
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

func (r *SQLiteRepository) queryScenarios(ctx context.Context, query string, args ...any) ([]Scenario, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []Scenario
	for rows.Next() {
		s, scanErr := scanScenario(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning scenario: %w", scanErr)
		}
		scenarios = append(scenarios, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenarios: %w", err)
	}
	return scenarios, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(scanner rowScanner) (*Scenario, error) {
	var s Scenario
	var triggerType, triggerJSON, actionJSON string
	var active int
	var lastExecuted sql.NullString
	var lastStatus sql.NullInt64
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&s.ID, &s.Name, &triggerType, &triggerJSON, &actionJSON, &active,
		&lastExecuted, &s.ExecutionCount, &lastStatus, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	s.TriggerType = TriggerType(triggerType)
	s.IsActive = active != 0
	if lastExecuted.Valid {
		if t, err := time.Parse(time.RFC3339, lastExecuted.String); err == nil {
			s.LastExecuted = &t
		}
	}
	if lastStatus.Valid {
		ok := lastStatus.Int64 != 0
		s.LastStatus = &ok
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	if err := json.Unmarshal([]byte(triggerJSON), &s.TriggerParams); err != nil {
		return nil, fmt.Errorf("unmarshalling trigger params: %w", err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &s.ActionParams); err != nil {
		return nil, fmt.Errorf("unmarshalling action params: %w", err)
	}
	if s.TriggerParams == nil {
		s.TriggerParams = map[string]any{}
	}
	if s.ActionParams == nil {
		s.ActionParams = map[string]any{}
	}
	return &s, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalParams(s *Scenario) (string, string, error) {
	triggerJSON, err := json.Marshal(nonNil(s.TriggerParams))
	if err != nil {
		return "", "", fmt.Errorf("marshalling trigger params: %w", err)
	}
	actionJSON, err := json.Marshal(nonNil(s.ActionParams))
	if err != nil {
		return "", "", fmt.Errorf("marshalling action params: %w", err)
	}
	return string(triggerJSON), string(actionJSON), nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrScenarioNotFound
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
