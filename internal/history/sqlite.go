package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// SQLiteRepository implements Repository on the event_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite event history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a new history entry. EventID and CreatedAt are
// generated when empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if e.EventID == "" {
		e.EventID = "evt-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	detailJSON := "{}"
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshalling detail: %w", err)
		}
		detailJSON = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_history (event_id, slot, kind, name, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Slot, e.Kind, e.Name, detailJSON,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event history: %w", err)
	}
	return nil
}

// List returns history entries matching the filter, ordered newest
// first. Rows sharing a timestamp fall back to insertion order.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	var conditions []string
	var args []any
	if f.Slot != 0 {
		conditions = append(conditions, "slot = ?")
		args = append(args, f.Slot)
	}
	if f.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, f.Kind)
	}

	query := "SELECT id, event_id, slot, kind, name, detail, created_at FROM event_history"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var e Entry
		var detailJSON, createdAt string

		if err := rows.Scan(&e.ID, &e.EventID, &e.Slot, &e.Kind, &e.Name, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event history: %w", err)
		}

		if detailJSON != "" && detailJSON != "{}" {
			if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshalling detail: %w", err)
			}
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = timestamp

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM event_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting event history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// parseTimestamp parses a timestamp stored in SQLite. Rows written by
// Record use RFC3339; rows created by the column default use the
// second form.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
