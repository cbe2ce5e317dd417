package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is one append-only audit record.
type Event struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"ts"`
	TaskID    string          `json:"task_id"`
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
}

// AppendEvent records a state transition. Events are never read back by the
// state machine.
func (s *Store) AppendEvent(ctx context.Context, taskID, name string, payload any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO events (ts, task_id, event, payload) VALUES (?, ?, ?, ?)`,
		formatTime(time.Now()), taskID, name, string(data),
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", name, err)
	}
	return nil
}

// Events returns the events recorded for a task in insertion order. An empty
// task id returns every event.
func (s *Store) Events(ctx context.Context, taskID string) ([]Event, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, ts, task_id, event, payload FROM events`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			tsRaw   string
			payload string
		)
		if err := rows.Scan(&ev.ID, &tsRaw, &ev.TaskID, &ev.Name, &payload); err != nil {
			return nil, err
		}
		if ts, err := parseTimeString(tsRaw); err == nil {
			ev.Timestamp = ts
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}
