package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter controls which log entries to return.
type Filter struct {
	Type     EventType // optional: filter by event type
	DeviceID string    // optional: filter by device
	Limit    int       // default and max Retention
}

// Repository defines the interface for event log operations.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// SQLiteRepository stores the bounded event log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new event log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts a new entry and evicts anything beyond the newest
// Retention rows. The ID and Timestamp are assigned if empty. Eviction
// goes by insertion order, not by timestamp.
func (r *SQLiteRepository) Append(ctx context.Context, entry *Entry) error {
	if !ValidType(entry.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidType, entry.Type)
	}
	if entry.ID == "" {
		entry.ID = "evt-" + uuid.NewString()[:8]
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var dataJSON *string
	if entry.Data != nil {
		b, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		s := string(b)
		dataJSON = &s
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event log transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		`INSERT INTO event_logs (id, timestamp, type, message, device_id, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.Format(time.RFC3339),
		string(entry.Type), entry.Message,
		nullableString(entry.DeviceID), dataJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting event log entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM event_logs
		 WHERE seq NOT IN (SELECT seq FROM event_logs ORDER BY seq DESC LIMIT ?)`,
		Retention,
	)
	if err != nil {
		return fmt.Errorf("evicting old event log entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event log entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns log entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 || filter.Limit > Retention {
		filter.Limit = Retention
	}

	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, timestamp, type, message, device_id, data FROM event_logs %s ORDER BY seq DESC LIMIT ?",
		where,
	)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var eventType, timestamp string
		var deviceID, dataJSON sql.NullString

		if err := rows.Scan(&entry.ID, &timestamp, &eventType,
			&entry.Message, &deviceID, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning event log entry: %w", err)
		}

		entry.Type = EventType(eventType)
		if deviceID.Valid {
			entry.DeviceID = deviceID.String
		}
		if dataJSON.Valid && dataJSON.String != "" {
			var data map[string]any
			if json.Unmarshal([]byte(dataJSON.String), &data) == nil {
				entry.Data = data
			}
		}

		t, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing event log timestamp %q: %w", timestamp, err)
		}
		entry.Timestamp = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event log: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return entries, nil
}

// Count returns the number of retained entries.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting event log entries: %w", err)
	}
	return n, nil
}

// DeleteAll removes every retained entry. Used by factory reset.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM event_logs"); err != nil {
		return fmt.Errorf("clearing event log: %w", err)
	}
	return nil
}
