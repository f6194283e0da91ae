package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for scenario persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Scenario, error)
	List(ctx context.Context) ([]Scenario, error)
	ListByTrigger(ctx context.Context, triggerType TriggerType) ([]Scenario, error)
	Create(ctx context.Context, scn *Scenario) error
	Update(ctx context.Context, scn *Scenario) error
	UpdateLastRun(ctx context.Context, id string, t time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// scenarioColumns is the SELECT column list for scenario queries.
const scenarioColumns = `id, name, description, enabled, trigger_type, trigger_config,
			logic, last_run, created_at, updated_at`

// triggerConfig is the JSON shape of the trigger_config column. The
// trigger type lives in its own column so it can be indexed.
type triggerConfig struct {
	Cron        string  `json:"cron,omitempty"`
	DeviceEvent *string `json:"device_event,omitempty"`
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a scenario by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	scn, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScenarioNotFound
		}
		return nil, fmt.Errorf("querying scenario by id: %w", err)
	}
	return scn, nil
}

// List retrieves all scenarios ordered by name then id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios ORDER BY name, id`
	return r.queryScenarios(ctx, query)
}

// ListByTrigger retrieves all scenarios with the given trigger type.
func (r *SQLiteRepository) ListByTrigger(ctx context.Context, triggerType TriggerType) ([]Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE trigger_type = ? ORDER BY name, id`
	return r.queryScenarios(ctx, query, string(triggerType))
}

// Create inserts a new scenario.
func (r *SQLiteRepository) Create(ctx context.Context, scn *Scenario) error {
	logicJSON, configJSON, err := marshalScenario(scn)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if scn.CreatedAt.IsZero() {
		scn.CreatedAt = now
	}
	scn.UpdatedAt = now

	query := `
		INSERT INTO scenarios (
			id, name, description, enabled, trigger_type, trigger_config,
			logic, last_run, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		scn.ID,
		scn.Name,
		scn.Description,
		boolToInt(scn.Enabled),
		string(scn.Trigger.Type),
		configJSON,
		logicJSON,
		nullableTime(scn.LastRun),
		scn.CreatedAt.Format(time.RFC3339),
		scn.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrScenarioExists
		}
		return fmt.Errorf("inserting scenario: %w", err)
	}
	return nil
}

// Update modifies an existing scenario.
func (r *SQLiteRepository) Update(ctx context.Context, scn *Scenario) error {
	logicJSON, configJSON, err := marshalScenario(scn)
	if err != nil {
		return err
	}

	scn.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE scenarios SET
			name = ?, description = ?, enabled = ?, trigger_type = ?,
			trigger_config = ?, logic = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		scn.Name,
		scn.Description,
		boolToInt(scn.Enabled),
		string(scn.Trigger.Type),
		configJSON,
		logicJSON,
		scn.UpdatedAt.Format(time.RFC3339),
		scn.ID,
	)
	if err != nil {
		return fmt.Errorf("updating scenario: %w", err)
	}

	return requireRowAffected(result)
}

// UpdateLastRun stamps a scenario's last evaluation time.
func (r *SQLiteRepository) UpdateLastRun(ctx context.Context, id string, t time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE scenarios SET last_run = ? WHERE id = ?",
		t.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating scenario last run: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes a scenario by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenarios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting scenario: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteAll removes every scenario. Used by factory reset.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM scenarios"); err != nil {
		return fmt.Errorf("clearing scenarios: %w", err)
	}
	return nil
}

// queryScenarios executes a query and returns a slice of scenarios.
func (r *SQLiteRepository) queryScenarios(ctx context.Context, query string, args ...any) ([]Scenario, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []Scenario
	for rows.Next() {
		scn, scanErr := scanScenario(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning scenario: %w", scanErr)
		}
		scenarios = append(scenarios, *scn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenarios: %w", err)
	}
	return scenarios, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(scanner rowScanner) (*Scenario, error) {
	var s Scenario
	var description, lastRun sql.NullString
	var enabled int
	var triggerType, configJSON, logicJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&description,
		&enabled,
		&triggerType,
		&configJSON,
		&logicJSON,
		&lastRun,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		s.Description = description.String
	}
	s.Enabled = enabled != 0

	s.Trigger.Type = TriggerType(triggerType)
	if configJSON != "" && configJSON != "{}" {
		var cfg triggerConfig
		if jsonErr := json.Unmarshal([]byte(configJSON), &cfg); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling trigger config: %w", jsonErr)
		}
		s.Trigger.Cron = cfg.Cron
		s.Trigger.DeviceEvent = cfg.DeviceEvent
	}

	if logicJSON != "" && logicJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(logicJSON), &s.Logic); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling logic: %w", jsonErr)
		}
	}
	if s.Logic == nil {
		s.Logic = []LogicBlock{}
	}

	if lastRun.Valid {
		if t, parseErr := time.Parse(time.RFC3339, lastRun.String); parseErr == nil {
			s.LastRun = &t
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	return &s, nil
}

// marshalScenario serialises the JSON columns for insert/update.
func marshalScenario(scn *Scenario) (logicJSON, configJSON string, err error) {
	logic := scn.Logic
	if logic == nil {
		logic = []LogicBlock{}
	}
	lb, err := json.Marshal(logic)
	if err != nil {
		return "", "", fmt.Errorf("marshalling logic: %w", err)
	}

	cb, err := json.Marshal(triggerConfig{
		Cron:        scn.Trigger.Cron,
		DeviceEvent: scn.Trigger.DeviceEvent,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshalling trigger config: %w", err)
	}

	return string(lb), string(cb), nil
}

func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrScenarioNotFound
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
